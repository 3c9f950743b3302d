package outbound

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"feedra/pkg/platform/httputil"
)

type Handler struct {
	supportPhone string
}

func NewHandler(supportPhone string) *Handler {
	return &Handler{supportPhone: supportPhone}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/payments/{type}", h.handlePaymentLink)
	r.Get("/v1/payments/{type}/checkout", h.handleCheckout)
	r.Get("/v1/support/whatsapp", h.handleWhatsApp)
}

func (h *Handler) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, PaymentLinkFor(PaymentType(chi.URLParam(r, "type"))))
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	link := PaymentLinkFor(PaymentType(chi.URLParam(r, "type")))
	http.Redirect(w, r, link.URL, http.StatusFound)
}

func (h *Handler) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"url": WhatsAppLink(h.supportPhone, r.URL.Query().Get("text")),
	})
}
