package router

import (
	"os"
	"path/filepath"

	"mindcare/backend/pkg/validator"
)

// AddOpenAPIValidation validates requests against the schema at schemaPath
// and serves the schema under /api/docs. A missing or invalid schema only
// disables validation.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "Failed to initialize OpenAPI validator")
		return
	}

	r.schema = v
	r.Engine.Use(v.Middleware())
	r.Engine.StaticFile("/api/docs/"+filepath.Base(schemaPath), schemaPath)
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}

// ReloadSchema re-reads the OpenAPI schema. It is a no-op when validation is
// disabled; on error the previous schema stays in effect.
func (r *Router) ReloadSchema() error {
	if r.schema == nil {
		return nil
	}
	return r.schema.ReloadSchema()
}
