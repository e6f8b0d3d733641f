package procurement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/receiving/internal/platform/httpx"
	"github.com/odyssey-erp/receiving/internal/procurement/grn"
)

// Handler manages goods receive note endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers goods receive note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/po_receiving_summary", h.receivingSummary)
	r.Route("/goods_received_notes", func(r chi.Router) {
		r.Post("/", h.createNote)
		r.Get("/po_receiving_summary", h.receivingSummary)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getNote)
			r.Post("/grn_line_items", h.saveLineItems)
			r.Post("/verify_grn_serial", h.verifySerial)
			r.Post("/qc_reviews", h.reviewLine)
			r.Post("/qc_line_items", h.submitQC)
			r.Patch("/initiate_qc", h.transition(h.service.InitiateQC))
			r.Patch("/complete", h.transition(h.service.Complete))
			r.Patch("/cancel", h.transition(h.service.Cancel))
		})
	})
}

type createNoteRequest struct {
	POID            int64      `json:"po_id" validate:"required,gt=0"`
	Number          string     `json:"number" validate:"max=64"`
	InvoiceNumber   string     `json:"invoice_number" validate:"max=64"`
	InvoiceDate     *time.Time `json:"invoice_date"`
	ReceivedDate    *time.Time `json:"received_date"`
	InvoiceDocument string     `json:"invoice_document" validate:"omitempty,url"`
}

type lineItemPayload struct {
	ID              int64         `json:"id"`
	SKUID           int64         `json:"product_sku_id" validate:"required,gt=0"`
	ReceivedQty     float64       `json:"received_quantity"`
	ReceivedBatches []BatchRecord `json:"received_batches"`
	ReceivedSerials []string      `json:"received_serials"`
}

type lineItemsRequest struct {
	Version int64             `json:"version"`
	Lines   []lineItemPayload `json:"grn_line_items" validate:"dive"`
}

type qcRowPayload struct {
	ID              int64         `json:"id"`
	SKUID           int64         `json:"product_sku_id" validate:"required_without=ID"`
	AcceptedQty     *int64        `json:"accepted_quantity"`
	RejectedQty     *int64        `json:"rejected_quantity"`
	AcceptedBatches []BatchRecord `json:"accepted_batches"`
	RejectedBatches []BatchRecord `json:"rejected_batches"`
	AcceptedSerials []string      `json:"accepted_serials"`
	RejectedSerials []string      `json:"rejected_serials"`
	Reason          string        `json:"rejection_reason" validate:"max=500"`
}

type qcRequest struct {
	Version int64          `json:"version"`
	Lines   []qcRowPayload `json:"grn_line_items" validate:"dive"`
}

type verifySerialRequest struct {
	SKUID  int64  `json:"sku_id" validate:"required,gt=0"`
	Serial string `json:"serial_number"`
}

type transitionRequest struct {
	Version int64 `json:"version"`
}

func (p qcRowPayload) toRow() QCRow {
	return QCRow{
		ID:              p.ID,
		SKUID:           p.SKUID,
		AcceptedQty:     p.AcceptedQty,
		RejectedQty:     p.RejectedQty,
		AcceptedBatches: fromBatchRecords(p.AcceptedBatches),
		RejectedBatches: fromBatchRecords(p.RejectedBatches),
		AcceptedSerials: p.AcceptedSerials,
		RejectedSerials: p.RejectedSerials,
		Reason:          p.Reason,
	}
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateNoteInput{
		POID:            req.POID,
		Number:          req.Number,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceDocument: req.InvoiceDocument,
	}
	if req.InvoiceDate != nil {
		input.InvoiceDate = *req.InvoiceDate
	}
	if req.ReceivedDate != nil {
		input.ReceivedDate = *req.ReceivedDate
	}
	note, err := h.service.CreateNote(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, slog.Int64("po_id", req.POID))
		return
	}
	httpx.JSON(w, http.StatusCreated, newNoteResponse(note))
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	note, err := h.service.GetNote(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, slog.Int64("grn_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, newNoteResponse(note))
}

func (h *Handler) receivingSummary(w http.ResponseWriter, r *http.Request) {
	poID, err := strconv.ParseInt(r.URL.Query().Get("po_id"), 10, 64)
	if err != nil || poID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "po_id must be a positive integer")
		return
	}
	var grnID int64
	if raw := r.URL.Query().Get("grn_id"); raw != "" {
		grnID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || grnID < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "grn_id must be a positive integer")
			return
		}
	}
	summary, err := h.service.ReceivingSummary(r.Context(), poID, grnID)
	if err != nil {
		h.writeError(w, r, err, slog.Int64("po_id", poID))
		return
	}
	httpx.JSON(w, http.StatusOK, newSummaryResponse(summary))
}

func (h *Handler) saveLineItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req lineItemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := SaveLineItemsInput{GRNID: id, Version: req.Version}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, grn.LineDraft{
			ID:          l.ID,
			SKUID:       l.SKUID,
			ReceivedQty: l.ReceivedQty,
			Batches:     fromBatchRecords(l.ReceivedBatches),
			Serials:     l.ReceivedSerials,
		})
	}
	note, err := h.service.SaveLineItems(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, slog.Int64("grn_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, newNoteResponse(note))
}

func (h *Handler) verifySerial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req verifySerialRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.VerifySerial(r.Context(), id, req.SKUID, req.Serial); err != nil {
		h.writeError(w, r, err, slog.Int64("grn_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "serial_number": strings.TrimSpace(req.Serial)})
}

func (h *Handler) reviewLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req qcRowPayload
	if !h.decode(w, r, &req) {
		return
	}
	li, err := h.service.ReviewLine(r.Context(), ReviewInput{GRNID: id, Row: req.toRow()})
	if err != nil {
		h.writeError(w, r, err, slog.Int64("grn_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, newLineResponse(li))
}

func (h *Handler) submitQC(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	var req qcRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := SubmitQCInput{GRNID: id, Version: req.Version}
	for _, row := range req.Lines {
		input.Rows = append(input.Rows, row.toRow())
	}
	note, err := h.service.SubmitQC(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err, slog.Int64("grn_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, newNoteResponse(note))
}

func (h *Handler) transition(fn func(ctx context.Context, input TransitionInput) (*grn.Note, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.noteID(w, r)
		if !ok {
			return
		}
		var req transitionRequest
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		note, err := fn(r.Context(), TransitionInput{GRNID: id, Version: req.Version})
		if err != nil {
			h.writeError(w, r, err, slog.Int64("grn_id", id))
			return
		}
		httpx.JSON(w, http.StatusOK, newNoteResponse(note))
	}
}

func (h *Handler) noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid goods receive note id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			p := httpx.ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: "request failed validation"}
			for _, fe := range verrs {
				p.Issues = append(p.Issues, httpx.Issue{Field: fe.Namespace(), Message: fmt.Sprintf("failed on %s", fe.Tag())})
			}
			httpx.WriteProblem(w, p)
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// writeError renders engine errors as 422 problems attributable to a row and
// falls back to the shared sentinel mapping.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, attrs ...any) {
	var ge *grn.Error
	if errors.As(err, &ge) {
		p := httpx.ProblemDetail{
			Type:   "urn:odyssey:receiving:" + string(ge.Kind),
			Title:  "Unprocessable Goods Receive Note",
			Status: http.StatusUnprocessableEntity,
			Detail: ge.Error(),
			Kind:   string(ge.Kind),
			SKU:    ge.SKU,
			SKUs:   ge.SKUs,
		}
		for _, issue := range ge.Issues {
			p.Issues = append(p.Issues, httpx.Issue{Kind: string(issue.Kind), SKU: issue.SKU, Message: issue.Error()})
		}
		httpx.WriteProblem(w, p)
		return
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
		h.logger.Error("goods receive note request", append([]any{slog.Any("error", err), slog.String("path", r.URL.Path)}, attrs...)...)
	}
	httpx.RespondError(w, err)
}

type totalsResponse struct {
	ReceivedQty    int64           `json:"received_quantity"`
	AcceptedQty    int64           `json:"accepted_quantity"`
	RejectedQty    int64           `json:"rejected_quantity"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	AcceptedAmount decimal.Decimal `json:"accepted_amount"`
	RejectedAmount decimal.Decimal `json:"rejected_amount"`
}

type lineResponse struct {
	ID           int64           `json:"id"`
	SKUID        int64           `json:"product_sku_id"`
	SKUCode      string          `json:"sku_code"`
	TrackingType string          `json:"tracking_type"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReceivedQty  int64           `json:"received_quantity"`
	AcceptedQty  *int64          `json:"accepted_quantity"`
	RejectedQty  *int64          `json:"rejected_quantity"`
	Reason       string          `json:"rejection_reason,omitempty"`
	ReviewState  string          `json:"review_state"`
	Confirmed    bool            `json:"confirmed"`
	QCComplete   bool            `json:"qc_complete"`
	ledgerRecord
}

type noteResponse struct {
	ID              int64          `json:"id"`
	Number          string         `json:"number"`
	POID            int64          `json:"po_id"`
	VendorID        int64          `json:"vendor_id"`
	NodeID          int64          `json:"node_id"`
	InvoiceNumber   string         `json:"invoice_number,omitempty"`
	InvoiceDate     *time.Time     `json:"invoice_date,omitempty"`
	ReceivedDate    time.Time      `json:"received_date"`
	InvoiceDocument string         `json:"invoice_document,omitempty"`
	Status          string         `json:"status"`
	QCSubmitted     bool           `json:"qc_submitted"`
	Version         int64          `json:"version"`
	Totals          totalsResponse `json:"totals"`
	Lines           []lineResponse `json:"grn_line_items"`
}

type summaryLineResponse struct {
	SKUID        int64           `json:"sku_id"`
	SKUCode      string          `json:"sku_code"`
	Name         string          `json:"name"`
	TrackingType string          `json:"tracking_type"`
	RemainingQty int64           `json:"remaining_quantity"`
	OrderedQty   int64           `json:"ordered_quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func newLineResponse(li *grn.LineItem) lineResponse {
	resp := lineResponse{
		ID:           li.ID,
		SKUID:        li.SKUID,
		SKUCode:      li.SKUCode,
		TrackingType: string(li.Mode()),
		UnitPrice:    li.UnitPrice,
		ReceivedQty:  li.ReceivedQty,
		Reason:       li.Reason(),
		ReviewState:  string(li.Review),
		Confirmed:    li.Confirmed(),
		QCComplete:   grn.IsQcComplete(li),
	}
	if li.QC != nil || li.Mode() == grn.TrackingUntracked {
		accepted, rejected := li.Accepted(), li.Rejected()
		resp.AcceptedQty, resp.RejectedQty = &accepted, &rejected
	}
	if rec, err := newLedgerRecord(li.Tracking); err == nil {
		resp.ledgerRecord = rec
	}
	return resp
}

func newNoteResponse(n *grn.Note) noteResponse {
	resp := noteResponse{
		ID:              n.ID,
		Number:          n.Number,
		POID:            n.POID,
		VendorID:        n.VendorID,
		NodeID:          n.NodeID,
		InvoiceNumber:   n.InvoiceNumber,
		InvoiceDate:     optionalTime(n.InvoiceDate),
		ReceivedDate:    n.ReceivedDate,
		InvoiceDocument: n.InvoiceDocument,
		Status:          string(n.Status),
		QCSubmitted:     n.QCSubmitted,
		Version:         n.Version,
		Totals: totalsResponse{
			ReceivedQty:    n.Totals.ReceivedQty,
			AcceptedQty:    n.Totals.AcceptedQty,
			RejectedQty:    n.Totals.RejectedQty,
			ReceivedAmount: n.Totals.ReceivedAmount,
			AcceptedAmount: n.Totals.AcceptedAmount,
			RejectedAmount: n.Totals.RejectedAmount,
		},
		Lines: make([]lineResponse, 0, len(n.Lines)),
	}
	for _, li := range n.Lines {
		resp.Lines = append(resp.Lines, newLineResponse(li))
	}
	return resp
}

func newSummaryResponse(s ReceivingSummary) map[string]any {
	lines := make([]summaryLineResponse, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, summaryLineResponse{
			SKUID:        l.SKUID,
			SKUCode:      l.SKUCode,
			Name:         l.Name,
			TrackingType: string(l.TrackingType),
			RemainingQty: l.RemainingQty,
			OrderedQty:   l.OrderedQty,
			UnitPrice:    l.UnitPrice,
		})
	}
	return map[string]any{"po_id": s.POID, "grn_id": s.GRNID, "skus": lines}
}
