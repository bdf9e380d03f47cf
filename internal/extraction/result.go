package extraction

// Result holds the fields parsed out of a receipt's OCR text
type Result struct {
	BusinessNumbers  []string `json:"사업자번호"`
	StoreNames       []string `json:"가맹점명"`
	TransactionDates []string `json:"거래일시"`
	Amount           *int64   `json:"금액"` // maximum number seen, nil when there is none
}
