package handler

import (
	"net/http"

	"github.com/mcoot/tablebank/internal/api/response"
	"github.com/mcoot/tablebank/internal/services/codegen"
)

// CodeHandler hands out unused session codes
type CodeHandler struct {
	codes codegen.CodeGenerator
}

// NewCodeHandler creates a new code handler
func NewCodeHandler(codes codegen.CodeGenerator) *CodeHandler {
	return &CodeHandler{codes: codes}
}

// Generate handles POST /api/v1/codes
func (h *CodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	code, err := h.codes.NewSessionCode(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, response.Code{Code: string(code)})
}
