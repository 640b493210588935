package db

type Credential struct {
	Provider  string
	Username  string
	Password  string
	CreatedAt int64
}

type Account struct {
	ID          string
	Provider    string
	ExternalID  string
	DisplayName string
	Address     string
	CutoffDate  string
}

type Bill struct {
	ID            string
	AccountID     string
	BillingPeriod string
	Amount        float64
	Status        string
	DocumentPath  string
	CreatedAt     int64
	UpdatedAt     int64
}
