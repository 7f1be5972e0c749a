package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/booth-sale/internal/core/domain"
	"github.com/rl1809/booth-sale/internal/core/service"
)

type HTTPHandler struct {
	events    *service.EventService
	catalog   *service.CatalogService
	inventory *service.InventoryService
	orders    *service.OrderService
	reports   *service.ReportService
}

func NewHTTPHandler(
	events *service.EventService,
	catalog *service.CatalogService,
	inventory *service.InventoryService,
	orders *service.OrderService,
	reports *service.ReportService,
) *HTTPHandler {
	return &HTTPHandler{
		events:    events,
		catalog:   catalog,
		inventory: inventory,
		orders:    orders,
		reports:   reports,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("POST /api/events", h.CreateEvent)
	mux.HandleFunc("GET /api/events", h.ListEvents)
	mux.HandleFunc("PUT /api/events/{id}", h.UpdateEvent)
	mux.HandleFunc("PUT /api/events/{id}/status", h.UpdateEventStatus)
	mux.HandleFunc("DELETE /api/events/{id}", h.DeleteEvent)

	mux.HandleFunc("POST /api/master-products", h.CreateProduct)
	mux.HandleFunc("GET /api/master-products", h.ListProducts)
	mux.HandleFunc("PUT /api/master-products/{id}/status", h.SetProductActive)

	mux.HandleFunc("GET /api/events/{id}/products", h.ListInventory)
	mux.HandleFunc("POST /api/events/{id}/products", h.AddInventory)
	mux.HandleFunc("PUT /api/products/{id}", h.UpdateInventory)
	mux.HandleFunc("DELETE /api/products/{id}", h.RemoveInventory)

	mux.HandleFunc("POST /api/events/{id}/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/events/{id}/orders", h.ListOrders)
	mux.HandleFunc("PUT /api/events/{id}/orders/{orderID}/status", h.UpdateOrderStatus)

	mux.HandleFunc("GET /api/events/{id}/stats", h.EventStats)
}

// --- events ---

type createEventRequest struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Location string `json:"location"`
}

func (h *HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	event, err := h.events.Create(r.Context(), req.Name, date, req.Location)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventJSON(event))
}

func (h *HTTPHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	status := domain.EventStatus(r.URL.Query().Get("status"))
	events, err := h.events.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]any, 0, len(events))
	for i := range events {
		out = append(out, eventJSON(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateEventRequest struct {
	Name     *string `json:"name"`
	Date     *string `json:"date"`
	Location *string `json:"location"`
}

func (h *HTTPHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var date *time.Time
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = &d
	}

	event, err := h.events.Update(r.Context(), id, req.Name, date, req.Location)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventJSON(event))
}

func (h *HTTPHandler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.events.UpdateStatus(r.Context(), id, domain.EventStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventJSON(event))
}

func (h *HTTPHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.events.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- catalog ---

type createProductRequest struct {
	Code         string          `json:"product_code"`
	Name         string          `json:"name"`
	DefaultPrice decimal.Decimal `json:"default_price"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.catalog.Create(r.Context(), req.Code, req.Name, req.DefaultPrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, productJSON(product))
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"
	products, err := h.catalog.List(r.Context(), includeInactive)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]any, 0, len(products))
	for i := range products {
		out = append(out, productJSON(&products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) SetProductActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "'is_active' (boolean) is required")
		return
	}

	product, err := h.catalog.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productJSON(product))
}

// --- inventory ---

type addInventoryRequest struct {
	ProductCode  string           `json:"product_code"`
	InitialStock int              `json:"initial_stock"`
	Price        *decimal.Decimal `json:"price"`
}

func (h *HTTPHandler) AddInventory(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req addInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.inventory.AddToEvent(r.Context(), eventID, req.ProductCode, req.InitialStock, req.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemJSON(item))
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	listings, err := h.inventory.ListForEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]any, 0, len(listings))
	for i := range listings {
		out = append(out, listingJSON(&listings[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateInventoryRequest struct {
	Price        *decimal.Decimal `json:"price"`
	InitialStock *int             `json:"initial_stock"`
}

func (h *HTTPHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.inventory.Update(r.Context(), itemID, req.Price, req.InitialStock)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemJSON(item))
}

func (h *HTTPHandler) RemoveInventory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.inventory.Remove(r.Context(), itemID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- orders ---

type placeOrderRequest struct {
	RequestID string `json:"request_id"`
	Items     []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]domain.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.LineInput{InventoryItemID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.PlaceOrder(r.Context(), service.PlaceOrderInput{
		EventID:   eventID,
		RequestID: req.RequestID,
		Lines:     lines,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderJSON(order))
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.orders.List(r.Context(), eventID, status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]any, 0, len(orders))
	for i := range orders {
		out = append(out, orderJSON(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	orderID := r.PathValue("orderID")
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), eventID, orderID, domain.OrderStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderJSON(order))
}

// --- stats ---

func (h *HTTPHandler) EventStats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.reports.EventStats(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Rejections
// carry the specific failure, never a bare "order failed".
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrProductInactive):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrDuplicateListing),
		errors.Is(err, domain.ErrDuplicateRequest),
		errors.Is(err, domain.ErrHasOrders),
		errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func eventJSON(e *domain.Event) map[string]any {
	return map[string]any{
		"id":       e.ID,
		"name":     e.Name,
		"date":     e.Date.Format("2006-01-02"),
		"location": e.Location,
		"status":   e.Status,
	}
}

func productJSON(p *domain.CatalogProduct) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"product_code":  p.Code,
		"name":          p.Name,
		"default_price": p.DefaultPrice,
		"is_active":     p.Active,
	}
}

func itemJSON(i *domain.InventoryItem) map[string]any {
	return map[string]any{
		"id":                i.ID,
		"event_id":          i.EventID,
		"master_product_id": i.CatalogProductID,
		"price":             i.Price,
		"initial_stock":     i.InitialStock,
	}
}

func listingJSON(l *domain.InventoryListing) map[string]any {
	out := itemJSON(&l.InventoryItem)
	out["product_code"] = l.Code
	out["name"] = l.Name
	out["available_stock"] = l.AvailableStock
	return out
}

func orderJSON(o *domain.Order) map[string]any {
	lines := make([]map[string]any, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, map[string]any{
			"id":         l.ID,
			"product_id": l.InventoryItemID,
			"quantity":   l.Quantity,
		})
	}
	return map[string]any{
		"id":           o.ID,
		"event_id":     o.EventID,
		"status":       o.Status,
		"total_amount": o.TotalAmount,
		"timestamp":    o.CreatedAt,
		"items":        lines,
	}
}
