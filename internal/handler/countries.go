package handler

import (
	"context"
	"net/http"

	"github.com/leonardcser/kv-handlers/internal/envelope"
)

type Country struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// EUCountries lists the EU member states with their ISO 3166-1 alpha-2 codes.
var EUCountries = []Country{
	{"Austria", "AT"},
	{"Belgium", "BE"},
	{"Bulgaria", "BG"},
	{"Croatia", "HR"},
	{"Cyprus", "CY"},
	{"Czech Republic", "CZ"},
	{"Denmark", "DK"},
	{"Estonia", "EE"},
	{"Finland", "FI"},
	{"France", "FR"},
	{"Germany", "DE"},
	{"Greece", "GR"},
	{"Hungary", "HU"},
	{"Ireland", "IE"},
	{"Italy", "IT"},
	{"Latvia", "LV"},
	{"Lithuania", "LT"},
	{"Luxembourg", "LU"},
	{"Malta", "MT"},
	{"Netherlands", "NL"},
	{"Poland", "PL"},
	{"Portugal", "PT"},
	{"Romania", "RO"},
	{"Slovakia", "SK"},
	{"Slovenia", "SI"},
	{"Spain", "ES"},
	{"Sweden", "SE"},
}

type CountriesBody struct {
	Countries []Country `json:"countries"`
	Execution string    `json:"execution"`
}

// Countries answers every request with the static country list.
func Countries() envelope.Handler {
	return envelope.HandlerFunc(func(_ context.Context, _ envelope.Request) envelope.Response {
		sw := envelope.Start()
		return envelope.JSON(http.StatusOK, CountriesBody{
			Countries: EUCountries,
			Execution: sw.MillisUnit(),
		})
	})
}
