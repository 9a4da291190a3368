package tracker

type StartSessionPayload struct {
	UserID        string `json:"user_id" validate:"required"`
	CatalogItemID string `json:"catalog_item_id" validate:"required"`
}

type ReportPayload struct {
	UserID          string `json:"user_id" validate:"required"`
	CatalogItemID   string `json:"catalog_item_id" validate:"required"`
	PositionSeconds int    `json:"position_seconds" validate:"min=0"`
	TotalSeconds    int    `json:"total_seconds,omitempty" validate:"min=0"`
}

type StopSessionPayload struct {
	UserID        string `json:"user_id" validate:"required"`
	CatalogItemID string `json:"catalog_item_id" validate:"required"`
}
