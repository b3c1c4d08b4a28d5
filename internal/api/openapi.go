// Пакет api — OpenAPI-описание HTTP-поверхности Delivery Module.
// Документ встраивается в бинарник, валидируется при старте
// и отдаётся на /api/v1/openapi.json.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var specYAML []byte

// LoadSpec загружает и валидирует встроенный OpenAPI-документ.
// Вызывается при старте: невалидный документ — ошибка сборки образа,
// а не сюрприз в рантайме.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI-документа: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-документа: %w", err)
	}
	return doc, nil
}

// SpecHandler отдаёт OpenAPI-документ в формате JSON.
func SpecHandler(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}
