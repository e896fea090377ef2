package schemas

const (
	ItemPublishedURL string = "https://schema.lostfound.dev/item-published.json"
	ItemReturnedURL  string = "https://schema.lostfound.dev/item-returned.json"
)
