package source

// Item is one thread or comment found on a listing page.
type Item struct {
	ID    string
	URL   string
	Title string
	// Listing URL the item was found on
	Source string
}

// Identity is the dedup key of the item.
func (i Item) Identity() string {
	return i.ID
}
