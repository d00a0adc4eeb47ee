// Package ofx converts OFX/QFX bank statements into expense records.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/follow-the-money/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX statement and returns expense records ready
// for the classify-and-save pipeline.
func (p *Parser) ParseFile(reader io.Reader) ([]model.Record, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var records []model.Record
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, p.convertTransaction(tx))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, p.convertTransaction(tx))
			}
		}
	}

	slog.Info("Parsed OFX file",
		"records", len(records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return records, nil
}

// convertTransaction maps one OFX transaction onto a record. The amount's
// sign is kept as reported (debits negative); the posting timestamp
// truncates to a calendar date.
func (p *Parser) convertTransaction(tx ofxgo.Transaction) model.Record {
	amount, _ := tx.TrnAmt.Float64()

	description := strings.TrimSpace(string(tx.Name))
	if memo := strings.TrimSpace(string(tx.Memo)); memo != "" && !strings.EqualFold(memo, description) {
		if description == "" {
			description = memo
		} else {
			description = description + " " + memo
		}
	}

	posted := tx.DtPosted.Time
	date := time.Date(posted.Year(), posted.Month(), posted.Day(), 0, 0, 0, 0, time.UTC)

	return model.Record{
		Date:        date,
		Description: description,
		Amount:      amount,
	}
}
