package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"pandarelay/internal/providers/image"
)

// productID accepts both "123" and 123; the catalog returns numeric ids but
// the front end forwards them as strings.
type productID string

func (p *productID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = productID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = productID(n.String())
	return nil
}

type refineImageRequest struct {
	ProductID   productID `json:"product_id"`
	ImageBase64 string    `json:"image_base64" validate:"required_without=ImageURL"`
	ImageURL    string    `json:"image_url" validate:"omitempty,http_url"`
	Prompt      string    `json:"prompt" validate:"required"`
}

func (req *refineImageRequest) fromQuery(q url.Values) {
	req.ProductID = productID(strings.TrimSpace(q.Get("product_id")))
	req.ImageBase64 = q.Get("image_base64")
	req.ImageURL = strings.TrimSpace(q.Get("image_url"))
	req.Prompt = q.Get("prompt")
}

// prune drops image_url when image_base64 is present; base64 takes precedence.
func (req *refineImageRequest) prune() {
	if strings.TrimSpace(req.ImageBase64) != "" {
		req.ImageURL = ""
	}
}

type refineImageResponse struct {
	ImageBase64 string `json:"image_base64"`
}

type uploadImageRequest struct {
	ProductID   productID `json:"product_id" validate:"required"`
	ImageBase64 string    `json:"image_base64" validate:"required"`
}

func (req *uploadImageRequest) fromQuery(q url.Values) {
	req.ProductID = productID(strings.TrimSpace(q.Get("product_id")))
	req.ImageBase64 = q.Get("image_base64")
}

type uploadImageResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// RefineImage edits the supplied product image with the prompt. product_id is
// accepted for compatibility and otherwise ignored.
func (a *App) RefineImage(w http.ResponseWriter, r *http.Request) {
	var req refineImageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	src := image.Source{Base64: req.ImageBase64, URL: req.ImageURL}
	out, err := a.Images.Refine(r.Context(), src, req.Prompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, refineImageResponse{ImageBase64: out})
}

// UploadImage attaches a base64 image to a catalog product.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req uploadImageRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.Catalog.AttachImage(r.Context(), string(req.ProductID), req.ImageBase64)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, uploadImageResponse{Status: "success", Response: resp})
}
