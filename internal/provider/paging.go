package provider

// PageWindow maps a provider-opaque offset onto a slice window over a
// chronologically ordered record list of the given total length. Records
// inside a page are always oldest first; descending order only changes
// which end the offset counts from, so offset 0 is the newest page and
// each NextOffset walks further back in time.
func PageWindow(total int, opts LoadOptions) (start, end int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = total
	}

	if opts.SortOrder == SortAscending {
		start = opts.Offset
		if start > total {
			start = total
		}
		end = start + limit
		if end > total {
			end = total
		}
		return start, end
	}

	end = total - opts.Offset
	if end < 0 {
		end = 0
	}
	start = end - limit
	if start < 0 {
		start = 0
	}
	return start, end
}
