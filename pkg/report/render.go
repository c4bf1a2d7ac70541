package report

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Headers returns the report's column keys: the fixed record columns followed
// by one column per trailing history date.
func Headers(historyDates []string) []string {
	headers := []string{"Name", "Build", "Operating System", "VM Type", "Result", "Url"}
	return append(headers, historyDates...)
}

// RenderHTML builds the report document: a login hint followed by one table
// with a header row and one body row per report row. The URL column renders as
// a hyperlink wrapping the family name and build number; the raw report date
// is omitted, it is already implicit in the history columns.
func RenderHTML(jenkinsURL string, headers []string, rows []Row) string {
	fragments := []string{
		fmt.Sprintf(`<a href="%s/securityRealm/commenceLogin?from=%%2F"><font style="font-size:18px;">Login to Jenkins here if you are not already logged in</font></a><br/>`,
			strings.TrimRight(jenkinsURL, "/")),
		`<table style="white-space:nowrap; padding:4px;">`,
		`<tr style="border: 1px solid black;">`,
	}
	for _, header := range headers {
		fragments = append(fragments, fmt.Sprintf("<td>%s</td>", html.EscapeString(header)))
	}
	fragments = append(fragments, "</tr>")
	for _, row := range rows {
		fragments = append(fragments, "<tr>")
		fragments = append(fragments,
			fmt.Sprintf("<td>%s</td>", html.EscapeString(row.Family)),
			fmt.Sprintf("<td>%d</td>", row.Number),
			fmt.Sprintf("<td>%s</td>", html.EscapeString(row.OS)),
			fmt.Sprintf("<td>%s</td>", html.EscapeString(row.VM)),
			fmt.Sprintf("<td>%s</td>", html.EscapeString(row.Result)),
			fmt.Sprintf(`<td><a href="%s">%s #%d</a></td>`, row.URL, html.EscapeString(row.Family), row.Number),
		)
		for _, entry := range row.History {
			fragments = append(fragments, fmt.Sprintf("<td>%s</td>", html.EscapeString(entry.Result)))
		}
		fragments = append(fragments, "</tr>")
	}
	fragments = append(fragments, "</table>")
	return strings.Join(fragments, "\n")
}

var shortDatePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// Restyle applies the cosmetic substitutions to a finished report document:
// result keywords get recolored and absolute dates shrink to MM-DD. Purely
// textual, must run after all row content is finalized.
func Restyle(content string) string {
	content = strings.ReplaceAll(content, "FAILURE", `<font color="red"><b>FAIL</b></font>`)
	content = strings.ReplaceAll(content, "ABORTED", `<font color="yellow"><b>ABORT</b></font>`)
	content = strings.ReplaceAll(content, "SUCCESS", `<font color="green"><b>PASS</b></font>`)
	return shortDatePattern.ReplaceAllString(content, "$2-$3")
}
