package store

import (
	"fmt"
	"strings"

	"github.com/shopcat/apiserver/types"
)

const productColumns = `id, name, description, price, stock_quantity, image, created_at, updated_at`

// sortColumns whitelists the columns a listing may be ordered by. Only
// values from this map are ever interpolated into SQL.
var sortColumns = map[string]string{
	types.SortByName:      "name",
	types.SortByPrice:     "price",
	types.SortByCreatedAt: "created_at",
}

type productListQuery struct {
	count     string
	list      string
	countArgs []any
	listArgs  []any
}

// buildProductListQuery renders the count and page queries for a product
// listing. Filters are ANDed together; an unrecognized sort falls back to
// the default ordering.
func buildProductListQuery(filter types.ProductFilter, sort types.ProductSort, page types.PageRequest) productListQuery {
	var (
		conditions []string
		args       []any
	)
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf("price >= $%d", len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf("price <= $%d", len(args)))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			conditions = append(conditions, "stock_quantity > 0")
		} else {
			conditions = append(conditions, "stock_quantity = 0")
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	sort = sort.Normalize()
	direction := "DESC"
	if sort.Order == types.SortAsc {
		direction = "ASC"
	}
	orderBy := fmt.Sprintf(" ORDER BY %s %s, id %s", sortColumns[sort.By], direction, direction)

	countArgs := append([]any(nil), args...)
	listArgs := append(args, page.PerPage, page.Offset())
	limit := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(listArgs)-1, len(listArgs))

	return productListQuery{
		count:     "SELECT COUNT(1) FROM products" + where,
		list:      "SELECT " + productColumns + " FROM products" + where + orderBy + limit,
		countArgs: countArgs,
		listArgs:  listArgs,
	}
}
