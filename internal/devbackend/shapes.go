package devbackend

// The real backend has shipped items in two shapes over time. The fixture alternates
// between them by id so clients see both in a single page.

// rawItem renders a record in the shape the backend uses for its id
func (s *Store) rawItem(r Record) map[string]any {
	if r.ID%2 == 0 {
		return s.snakeItem(r)
	}
	return s.camelItem(r)
}

func (s *Server) rawItem(r Record) map[string]any {
	return s.store.rawItem(r)
}

// snakeItem is the current shape: snake_case with nested category and manufacturer
func (s *Store) snakeItem(r Record) map[string]any {
	item := map[string]any{
		"id":                r.ID,
		"name":              r.Name,
		"description":       r.Description,
		"shelf_number":      r.ShelfNumber,
		"category":          s.nestedRef(r.CategoryID, s.CategoryName(r.CategoryID)),
		"manufacturer":      s.nestedRef(r.ManufacturerID, s.ManufacturerName(r.ManufacturerID)),
		"unit":              r.Unit,
		"current_quantity":  r.CurrentQuantity,
		"optimal_quantity":  r.OptimalQuantity,
		"reorder_threshold": r.ReorderThreshold,
		"supplier_info":     r.SupplierInfo,
		"price":             r.Price,
	}
	if r.OrderStatus != "" {
		item["order_status"] = r.OrderStatus
	}
	if r.UpdatedAt != "" {
		item["updated_at"] = r.UpdatedAt
	}
	return item
}

// camelItem is the legacy flat shape with itemId/itemName and joined names
func (s *Store) camelItem(r Record) map[string]any {
	item := map[string]any{
		"itemId":           r.ID,
		"itemName":         r.Name,
		"description":      r.Description,
		"shelfNumber":      r.ShelfNumber,
		"categoryId":       r.CategoryID,
		"categoryName":     s.CategoryName(r.CategoryID),
		"manufacturerId":   r.ManufacturerID,
		"manufacturerName": s.ManufacturerName(r.ManufacturerID),
		"unit":             r.Unit,
		"currentQuantity":  r.CurrentQuantity,
		"optimalQuantity":  r.OptimalQuantity,
		"reorderThreshold": r.ReorderThreshold,
		"supplierInfo":     r.SupplierInfo,
		"price":            r.Price,
	}
	if r.OrderStatus != "" {
		item["orderStatus"] = r.OrderStatus
	}
	return item
}

func (s *Store) nestedRef(id *int64, name string) any {
	if id == nil {
		return nil
	}
	return map[string]any{"id": *id, "name": name}
}
