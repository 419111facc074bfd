package model

// RetentionDay is one row of the daily_retention_rates view.
// Rates arrive from the analytics database as decimal strings.
type RetentionDay struct {
	Date                string `json:"date"`
	Day1RetentionRate   string `json:"day1_retention_rate"`
	Day7RetentionRate   string `json:"day7_retention_rate"`
	Day14RetentionRate  string `json:"day14_retention_rate"`
	ReturningUsersDay1  int    `json:"returning_users_day1"`
	ReturningUsersDay7  int    `json:"returning_users_day7"`
	ReturningUsersDay14 int    `json:"returning_users_day14"`
	TotalUsers          int    `json:"total_users"`
}

// CohortRetention is one signup cohort with its active users per checkpoint.
type CohortRetention struct {
	CohortDate       string  `json:"cohort_date"`
	CohortSize       int     `json:"cohort_size"`
	Day1ActiveUsers  int     `json:"day1_active_users"`
	Day7ActiveUsers  int     `json:"day7_active_users"`
	Day14ActiveUsers int     `json:"day14_active_users"`
	Day30ActiveUsers int     `json:"day30_active_users"`
	Day1Retention    float64 `json:"day1_retention"`
	Day7Retention    float64 `json:"day7_retention"`
	Day14Retention   float64 `json:"day14_retention"`
	Day30Retention   float64 `json:"day30_retention"`
}

// DAU is one row of the dau_users view.
type DAU struct {
	Date        string `json:"date"`
	ActiveUsers int    `json:"active_users"`
}
