// Package hcl_adapter loads stepgrid pipeline definitions written in HCL and
// translates them into the format-agnostic config.Model.
//
// A definition may be spread over any number of .hcl files; directories are
// walked recursively. Top-level blocks:
//
//	pipeline "etl" { workers = 4 }
//	cache { backend = "badger" path = ".stepgrid/cache" }
//	params { source = "s3://raw" }
//	artifacts { bucket { backend = "minio" endpoint = "localhost:9000" name = "runs" } }
//	metadata { url = env("DATABASE_URL") }
//	observer "log" {}
//	step "load" { uses = "http_request" outputs = ["page"] }
//
// Expressions may call env(name) to read an environment variable.
package hcl_adapter
