package domain

import "github.com/shopspring/decimal"

// ItemSales is the per-item view of an event report. SoldCount counts
// completed orders only, unlike the committed quantity used for admission.
type ItemSales struct {
	ItemID       int64           `json:"item_id"`
	Code         string          `json:"product_code"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
	SoldCount    int             `json:"sold_count"`
	CurrentStock int             `json:"current_stock"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type EventSummary struct {
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	CompletedOrderCount int             `json:"completed_orders_count"`
	TotalItemsSold      int             `json:"total_items_sold"`
}

// EventInfo is the event snapshot embedded in a stats response.
type EventInfo struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Date     string      `json:"date"`
	Location string      `json:"location"`
	Status   EventStatus `json:"status"`
}

type EventStats struct {
	EventID int64        `json:"event_id"`
	Event   EventInfo    `json:"event_info"`
	Summary EventSummary `json:"summary"`
	Items   []ItemSales  `json:"product_details"`
}
