package extraction

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	businessNumberPattern = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{5}\b`)

	// Label variants include common OCR misreads of 상호 and 회사.
	storeNamePattern = regexp.MustCompile(
		`(매장명|상호명|회사명|업체명|가맣점명|[상싱성][호오]|[회훼]사)\s*[:;：]?\s*([^\s)]+(?:\s*\S*)*?점\s*?\S*)`,
	)

	transactionDatePattern = regexp.MustCompile(
		`([거기][래레][일닐]|[결겔]제[일닐]|거[래레]일시|[결겔]제날짜|날짜|일자)?\s*[:;：]?\s*` +
			`(\d{4}[-/.]\d{2}[-/.]\d{2}|\d{2}[-/.]\d{2}[-/.]\d{4}|\d{2}[-/.]\d{2}[-/.]\d{2})`,
	)

	dateSeparator = regexp.MustCompile(`[-/.]`)

	amountPattern = regexp.MustCompile(`\d{1,3}(?:,\d{3})*`)
)

// Fields applies every field extractor to the OCR fragments
func Fields(fragments []string) *Result {
	return &Result{
		BusinessNumbers:  BusinessNumbers(fragments),
		StoreNames:       StoreNames(fragments),
		TransactionDates: TransactionDates(fragments),
		Amount:           MaxAmount(fragments),
	}
}

// BusinessNumbers returns every DDD-DD-DDDDD shaped number (hyphens optional)
// in encounter order, duplicates included.
func BusinessNumbers(fragments []string) []string {
	numbers := make([]string, 0)
	for _, text := range fragments {
		numbers = append(numbers, businessNumberPattern.FindAllString(text, -1)...)
	}
	return numbers
}

// StoreNames returns the labelled merchant names ending in 점
func StoreNames(fragments []string) []string {
	names := make([]string, 0)
	for _, text := range fragments {
		for _, m := range storeNamePattern.FindAllStringSubmatch(text, -1) {
			names = append(names, m[2])
		}
	}
	return names
}

// TransactionDates returns every date value that passes ValidDate.
// Labels are matched but not returned.
func TransactionDates(fragments []string) []string {
	dates := make([]string, 0)
	for _, text := range fragments {
		for _, m := range transactionDatePattern.FindAllStringSubmatch(text, -1) {
			if ValidDate(m[2]) {
				dates = append(dates, m[2])
			}
		}
	}
	return dates
}

// ValidDate interprets a date by the length of its parts:
// (4,2,2) year-month-day, (2,2,4) day-month-year, (2,2,2) month-day-year
// with the year in the 2000s. Month lengths and leap years are not checked,
// any day up to 31 is accepted.
func ValidDate(date string) bool {
	parts := dateSeparator.Split(date, -1)
	if len(parts) != 3 {
		return false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return false
		}
		nums[i] = n
	}

	var year, month, day int
	switch {
	case len(parts[0]) == 4 && len(parts[1]) == 2 && len(parts[2]) == 2:
		year, month, day = nums[0], nums[1], nums[2]
	case len(parts[0]) == 2 && len(parts[1]) == 2 && len(parts[2]) == 4:
		day, month, year = nums[0], nums[1], nums[2]
	case len(parts[0]) == 2 && len(parts[1]) == 2 && len(parts[2]) == 2:
		month, day, year = nums[0], nums[1], nums[2]+2000
	default:
		return false
	}

	return year >= 2000 && year <= 2100 &&
		month >= 1 && month <= 12 &&
		day >= 1 && day <= 31
}

// MaxAmount returns the largest number found in any fragment, or nil.
// Numbers are runs of up to three digits optionally followed by comma groups,
// so an ungrouped run like 12500 reads as 125 and 00.
func MaxAmount(fragments []string) *int64 {
	var (
		best  int64
		found bool
	)
	for _, text := range fragments {
		for _, run := range amountPattern.FindAllString(text, -1) {
			n, err := strconv.ParseInt(strings.ReplaceAll(run, ",", ""), 10, 64)
			if err != nil {
				// overflow
				continue
			}
			if !found || n > best {
				best = n
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return &best
}
