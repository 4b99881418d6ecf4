package domain

// Affiliate is a referrer credited with orders from the sources listed in
// SourceList. Earnings are attributed by filtering orders on those sources.
type Affiliate struct {
	ID         string   `json:"id"`
	Fullname   string   `json:"fullname"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	SourceList []string `json:"source_list"`
}
