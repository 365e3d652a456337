package domain

import "fmt"

// Job — задача синхронизации с YNAB.
type Job string

const (
	JobAccounts        Job = "accounts"
	JobCategories      Job = "categories"
	JobPayees          Job = "payees"
	JobMonthSummaries  Job = "month-summaries"
	JobMonthDetails    Job = "month-details"
	JobTransactions    Job = "transactions"
	JobTransactionRels Job = "transaction-rels"
	JobSavings         Job = "savings"
	JobCardPayments    Job = "card-payments"
)

// AllJobs — все задачи в порядке, в котором их имеет смысл запускать с нуля.
var AllJobs = []Job{
	JobAccounts,
	JobCategories,
	JobPayees,
	JobMonthSummaries,
	JobMonthDetails,
	JobTransactions,
	JobTransactionRels,
	JobCardPayments,
	JobSavings,
}

// ParseJob проверяет имя задачи.
func ParseJob(s string) (Job, error) {
	for _, j := range AllJobs {
		if string(j) == s {
			return j, nil
		}
	}
	return "", fmt.Errorf("unknown sync job %q", s)
}

// String возвращает имя задачи.
func (j Job) String() string {
	return string(j)
}
