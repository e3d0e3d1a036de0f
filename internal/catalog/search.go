package catalog

import (
	"fmt"
	"strings"
)

// BuildMatchQuery turns free text into an FTS5 match expression: each
// whitespace token becomes a quoted prefix term, all terms ANDed. Returns ""
// when the text has no tokens.
func BuildMatchQuery(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.ReplaceAll(tok, `"`, " ")
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		terms = append(terms, fmt.Sprintf(`"%s"*`, tok))
	}
	return strings.Join(terms, " ")
}

// Search builds the filtered candidate set from the free-text query plus
// facet selections and returns ranked rows along with facet counts computed
// over that identical candidate set. limit truncates only the rows.
func (c *Catalog) Search(query string, filters Filters, limit int, mode Mode) ([]Result, FacetCounts, error) {
	q := strings.TrimSpace(query)
	where := []string{"docs.deleted=0"}
	var params []any

	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		nameClause := "(docs.name_norm LIKE ? OR LOWER(docs.path) LIKE ?)"
		contentClause := "docs.id IN (SELECT rowid FROM content_fts WHERE content_fts MATCH ?)"
		match := BuildMatchQuery(q)

		switch mode {
		case ModeContent:
			if match == "" {
				// No usable tokens: nothing can match the index.
				return nil, emptyFacets(), nil
			}
			where = append(where, contentClause)
			params = append(params, match)
		case ModeAll:
			if match != "" {
				where = append(where, "("+nameClause+" OR "+contentClause+")")
				params = append(params, like, like, match)
			} else {
				where = append(where, nameClause)
				params = append(params, like, like)
			}
		default: // ModeFilename
			where = append(where, nameClause)
			params = append(params, like, like)
		}
	}

	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		where = append(where, fmt.Sprintf("docs.%s IN (%s)", column, placeholders(len(values))))
		params = append(params, stringArgs(values)...)
	}
	addIn("filetype", filters.Filetypes)
	addIn("size_bucket", filters.SizeBuckets)
	addIn("date_bucket", filters.DateBuckets)
	if len(filters.LocationIDs) > 0 {
		where = append(where, fmt.Sprintf("docs.location_id IN (%s)", placeholders(len(filters.LocationIDs))))
		for _, id := range filters.LocationIDs {
			params = append(params, id)
		}
	}

	whereSQL := strings.Join(where, " AND ")

	// Exact substring hits on the name sort first, then newest by mtime.
	orderSQL := "docs.mtime_ns DESC"
	var orderParams []any
	if q != "" {
		orderSQL = "CASE WHEN docs.name_norm LIKE ? THEN 0 ELSE 1 END, docs.mtime_ns DESC"
		orderParams = append(orderParams, "%"+strings.ToLower(q)+"%")
	}

	rowsSQL := fmt.Sprintf(`
		SELECT docs.id, docs.path, docs.name, docs.name_norm, docs.parent, docs.ext,
		       docs.size_bytes, docs.mtime_ns, docs.ctime_ns,
		       docs.filetype, docs.size_bucket, docs.date_bucket,
		       COALESCE(docs.location_id, 0), docs.deleted,
		       COALESCE(locations.path, '')
		FROM docs LEFT JOIN locations ON locations.id = docs.location_id
		WHERE %s ORDER BY %s LIMIT ?`, whereSQL, orderSQL)

	args := append(append(append([]any{}, params...), orderParams...), limit)
	rows, err := c.db.Query(rowsSQL, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("search rows: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		err := rows.Scan(&r.ID, &r.Path, &r.Name, &r.NameNorm, &r.Parent, &r.Ext,
			&r.SizeBytes, &r.MtimeNS, &r.CtimeNS,
			&r.Filetype, &r.SizeBucket, &r.DateBucket,
			&r.LocationID, &r.Deleted, &r.LocationPath)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	facets := FacetCounts{}
	for dim, column := range map[string]string{
		"filetype":    "docs.filetype",
		"size_bucket": "docs.size_bucket",
		"date_bucket": "docs.date_bucket",
	} {
		counts, err := c.facetCounts(column, whereSQL, params)
		if err != nil {
			return nil, nil, fmt.Errorf("facet %s: %w", dim, err)
		}
		facets[dim] = counts
	}

	// Location counts are keyed by the location's path string, which needs
	// the join back to locations.
	locCounts, err := c.facetCounts("COALESCE(locations.path, '')", whereSQL, params)
	if err != nil {
		return nil, nil, fmt.Errorf("facet location: %w", err)
	}
	facets["location"] = locCounts

	return results, facets, nil
}

func (c *Catalog) facetCounts(expr, whereSQL string, params []any) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT %s AS k, COUNT(*)
		FROM docs LEFT JOIN locations ON locations.id = docs.location_id
		WHERE %s GROUP BY k`, expr, whereSQL)
	rows, err := c.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func emptyFacets() FacetCounts {
	return FacetCounts{
		"filetype":    map[string]int{},
		"size_bucket": map[string]int{},
		"date_bucket": map[string]int{},
		"location":    map[string]int{},
	}
}
