package routes

// Routes package cung cấp tất cả routing functions cho Address Lookup Service
//
// Cấu trúc:
// - api.go: API routes (/v1/*)
// - web.go: Web routes (/, /docs)
// - routes.go: package doc
//
// Sử dụng:
// routes.SetupAllRoutes(router, routes.Controllers{...})
