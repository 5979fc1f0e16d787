package dto

// FinnhubQuote is the /quote response.
type FinnhubQuote struct {
	Current       float64  `json:"c"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PreviousClose float64  `json:"pc"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	Volume        int64    `json:"v"`
	Timestamp     int64    `json:"t"`
}

// FinnhubProfile is the /stock/profile2 response. Market capitalization is
// reported in millions.
type FinnhubProfile struct {
	Name                 string  `json:"name"`
	Exchange             string  `json:"exchange"`
	Industry             string  `json:"finnhubIndustry"`
	MarketCapitalization float64 `json:"marketCapitalization"`
}

// FinnhubMetrics is the /stock/metric response.
type FinnhubMetrics struct {
	Metric struct {
		PETTM *float64 `json:"peTTM"`
	} `json:"metric"`
}

// FinnhubMarketStatus is the /stock/market-status response.
type FinnhubMarketStatus struct {
	Exchange string  `json:"exchange"`
	IsOpen   bool    `json:"isOpen"`
	Session  string  `json:"session"`
	Holiday  *string `json:"holiday"`
}
