package order

// DeriveStatus computes the aggregate order status from the item list.
// Precedence, in order: empty list → received; all items cancelled →
// cancelled; any item received → received; otherwise (a mix of ready and
// cancelled with at least one ready) → ready. An item without an explicit
// status counts as received.
func DeriveStatus(items []Item) OrderStatus {
	if len(items) == 0 {
		return StatusReceived
	}

	allCancelled := true
	anyReceived := false

	for i := range items {
		st := items[i].Status
		if st == "" {
			st = ItemStatusReceived
		}
		if st != ItemStatusCancelled {
			allCancelled = false
		}
		if st == ItemStatusReceived {
			anyReceived = true
		}
	}

	switch {
	case allCancelled:
		return StatusCancelled
	case anyReceived:
		return StatusReceived
	default:
		return StatusReady
	}
}

// EffectiveItemStatus returns the item's own status if set, otherwise the
// order's aggregate status. Records created before per-item status existed
// carry no item status at all; every read path must go through here.
func EffectiveItemStatus(it Item, orderStatus OrderStatus) ItemStatus {
	if it.Status != "" {
		return it.Status
	}
	return ItemStatus(orderStatus)
}

// IsActive reports whether the order still has work pending: at least one
// item is waiting to be prepared.
func IsActive(o *Order) bool {
	for i := range o.Items {
		if EffectiveItemStatus(o.Items[i], o.Status) == ItemStatusReceived {
			return true
		}
	}
	return false
}

// IsReady reports whether the order is done but not picked up: at least one
// item is ready and nothing is still received. A fully cancelled order is in
// neither bucket.
func IsReady(o *Order) bool {
	anyReady := false
	for i := range o.Items {
		switch EffectiveItemStatus(o.Items[i], o.Status) {
		case ItemStatusReady:
			anyReady = true
		case ItemStatusCancelled:
		default:
			return false
		}
	}
	return anyReady
}
