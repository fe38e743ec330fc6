package handlers

import (
	"encoding/json"
	"net/http"
)

type productsResponse struct {
	Products []json.RawMessage `json:"products"`
}

func (a *App) FetchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Catalog.ListProducts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []json.RawMessage{}
	}
	a.json(w, http.StatusOK, productsResponse{Products: products})
}
