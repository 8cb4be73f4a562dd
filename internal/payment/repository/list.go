package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/emberwallet/sparkstore/internal/payment/domain"
)

// List returns top-level payments matching the filter. Filter categories
// combine as AND, the details filter entries as OR. Children (payments with
// a parent in payment_metadata) are excluded.
func (r *repository) List(ctx context.Context, filter domain.ListPaymentsFilter) ([]*domain.Payment, error) {
	dialect := r.db.Dialector.Name()

	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT p.id FROM payments p
		LEFT JOIN payment_metadata pm ON pm.payment_id = p.id
		LEFT JOIN payment_details_lightning pdl ON pdl.payment_id = p.id
		LEFT JOIN payment_details_spark pds ON pds.payment_id = p.id
		LEFT JOIN payment_details_token pdt ON pdt.payment_id = p.id
		WHERE pm.parent_payment_id IS NULL`)

	if len(filter.TypeFilter) > 0 {
		sb.WriteString(` AND p.payment_type IN (?)`)
		args = append(args, enumStrings(filter.TypeFilter))
	}
	if len(filter.StatusFilter) > 0 {
		sb.WriteString(` AND p.status IN (?)`)
		args = append(args, enumStrings(filter.StatusFilter))
	}
	if filter.FromTimestamp != nil {
		sb.WriteString(` AND p.timestamp >= ?`)
		args = append(args, *filter.FromTimestamp)
	}
	if filter.ToTimestamp != nil {
		sb.WriteString(` AND p.timestamp < ?`)
		args = append(args, *filter.ToTimestamp)
	}
	if filter.AssetFilter != nil {
		if *filter.AssetFilter == domain.AssetSats {
			sb.WriteString(` AND p.details_type <> ?`)
			args = append(args, string(domain.DetailsTypeToken))
		} else {
			sb.WriteString(` AND p.details_type = ? AND ` + jsonText(dialect, "pdt.metadata", "identifier") + ` = ?`)
			args = append(args, string(domain.DetailsTypeToken), *filter.AssetFilter)
		}
	}
	if len(filter.DetailsFilter) > 0 {
		branches := make([]string, 0, len(filter.DetailsFilter))
		for _, detailsFilter := range filter.DetailsFilter {
			branch, branchArgs, err := detailsBranch(dialect, detailsFilter)
			if err != nil {
				return nil, fmt.Errorf("list payments: %w", err)
			}
			branches = append(branches, branch)
			args = append(args, branchArgs...)
		}
		sb.WriteString(` AND (` + strings.Join(branches, " OR ") + `)`)
	}

	if filter.SortAscending {
		sb.WriteString(` ORDER BY p.timestamp ASC, p.id ASC`)
	} else {
		sb.WriteString(` ORDER BY p.timestamp DESC, p.id ASC`)
	}

	if filter.Limit != nil || filter.Offset > 0 {
		limit := int64(math.MaxInt64)
		if filter.Limit != nil {
			limit = int64(*filter.Limit)
		}
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, filter.Offset)
	}

	var ids []string
	if err := r.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	payments, err := r.loadPayments(r.db.WithContext(ctx), ids)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// GetByParentIDs maps each parent id to its children ordered by ascending
// timestamp. An EXISTS probe skips the join entirely for ledgers that have
// never recorded a child payment.
func (r *repository) GetByParentIDs(ctx context.Context, ids []string) (map[string][]*domain.Payment, error) {
	result := make(map[string][]*domain.Payment)
	if len(ids) == 0 {
		return result, nil
	}

	var hasChildren bool
	err := r.db.WithContext(ctx).
		Raw(`SELECT EXISTS (SELECT 1 FROM payment_metadata WHERE parent_payment_id IS NOT NULL)`).
		Scan(&hasChildren).Error
	if err != nil {
		return nil, fmt.Errorf("get payments by parent ids: %w", err)
	}
	if !hasChildren {
		return result, nil
	}

	type childLink struct {
		PaymentID       string `gorm:"column:payment_id"`
		ParentPaymentID string `gorm:"column:parent_payment_id"`
	}
	var links []childLink
	err = r.db.WithContext(ctx).Raw(
		`SELECT pm.payment_id, pm.parent_payment_id
		 FROM payment_metadata pm
		 JOIN payments p ON p.id = pm.payment_id
		 WHERE pm.parent_payment_id IN (?)
		 ORDER BY p.timestamp ASC, p.id ASC`, ids).Scan(&links).Error
	if err != nil {
		return nil, fmt.Errorf("get payments by parent ids: %w", err)
	}
	if len(links) == 0 {
		return result, nil
	}

	childIDs := make([]string, 0, len(links))
	parentByChild := make(map[string]string, len(links))
	for _, link := range links {
		childIDs = append(childIDs, link.PaymentID)
		parentByChild[link.PaymentID] = link.ParentPaymentID
	}
	children, err := r.loadPayments(r.db.WithContext(ctx), childIDs)
	if err != nil {
		return nil, fmt.Errorf("get payments by parent ids: %w", err)
	}
	for _, child := range children {
		parent := parentByChild[child.ID]
		result[parent] = append(result[parent], child)
	}
	for _, group := range result {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Timestamp < group[j].Timestamp })
	}
	return result, nil
}

func detailsBranch(dialect string, filter domain.PaymentDetailsFilter) (string, []any, error) {
	switch f := filter.(type) {
	case domain.LightningDetailsFilter:
		clause := `(p.details_type = ?`
		args := []any{string(domain.DetailsTypeLightning)}
		if len(f.HtlcStatuses) > 0 {
			clause += ` AND pdl.htlc_status IN (?)`
			args = append(args, enumStrings(f.HtlcStatuses))
		}
		if f.HasLnurlPreimage != nil {
			preimage := jsonText(dialect, "pm.lnurl_pay_info", "preimage")
			if *f.HasLnurlPreimage {
				clause += ` AND COALESCE(` + preimage + `, '') <> ''`
			} else {
				clause += ` AND COALESCE(` + preimage + `, '') = ''`
			}
		}
		return clause + `)`, args, nil
	case domain.SparkDetailsFilter:
		clause := `(p.details_type = ?`
		args := []any{string(domain.DetailsTypeSpark)}
		if len(f.HtlcStatuses) > 0 {
			clause += ` AND pds.htlc_status IN (?)`
			args = append(args, enumStrings(f.HtlcStatuses))
		}
		if f.ConversionRefundNeeded != nil {
			refund := jsonBool(dialect, "pds.conversion_info", "refund_needed")
			if *f.ConversionRefundNeeded {
				clause += ` AND ` + refund
			} else {
				clause += ` AND NOT ` + refund
			}
		}
		return clause + `)`, args, nil
	case domain.TokenDetailsFilter:
		clause := `(p.details_type = ?`
		args := []any{string(domain.DetailsTypeToken)}
		if len(f.TxTypes) > 0 {
			clause += ` AND pdt.tx_type IN (?)`
			args = append(args, enumStrings(f.TxTypes))
		}
		return clause + `)`, args, nil
	default:
		return "", nil, fmt.Errorf("unsupported details filter %T", filter)
	}
}

// jsonText extracts a text field from a JSON column, NULL when absent.
func jsonText(dialect, column, field string) string {
	switch dialect {
	case "postgres":
		return fmt.Sprintf("%s ->> '%s'", column, field)
	case "mysql":
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, '$.%s'))", column, field)
	default:
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, field)
	}
}

// jsonBool evaluates a boolean field of a JSON column, false when the row
// or the field is absent.
func jsonBool(dialect, column, field string) string {
	switch dialect {
	case "postgres":
		return fmt.Sprintf("COALESCE((%s ->> '%s')::boolean, FALSE)", column, field)
	case "mysql":
		return fmt.Sprintf("COALESCE(JSON_EXTRACT(%s, '$.%s') = TRUE, FALSE)", column, field)
	default:
		return fmt.Sprintf("COALESCE(json_extract(%s, '$.%s') = 1, 0)", column, field)
	}
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
