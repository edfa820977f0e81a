package httpserver

import (
	_ "embed"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed openapi.yaml
var openAPI []byte

func serveDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := w.Write(openAPI); err != nil {
		log.Error().Err(err).Msg("failed to write OpenAPI document")
	}
}
