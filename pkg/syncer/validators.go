package syncer

type SaveProgressPayload struct {
	UserID              string `json:"user_id" validate:"required"`
	CatalogItemID       string `json:"catalog_item_id" validate:"required"`
	WatchedSeconds      int    `json:"watched_seconds" validate:"min=0"`
	TotalSeconds        int    `json:"total_seconds,omitempty" validate:"min=0"`
	LastPositionSeconds int    `json:"last_position_seconds" validate:"min=0"`
}

type ToggleCompletedPayload struct {
	UserID        string `json:"user_id" validate:"required"`
	CatalogItemID string `json:"catalog_item_id" validate:"required"`
}

type SaveNotePayload struct {
	UserID        string `json:"user_id" validate:"required"`
	CatalogItemID string `json:"catalog_item_id" validate:"required"`
	Content       string `json:"content" validate:"max=10000"`
}

type ListByUserQuery struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
}

type ListCatalogQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}
