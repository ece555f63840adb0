package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shestoi/adminpanel/platform/httpclient"
	"github.com/shestoi/adminpanel/services/order/internal/client"
	"github.com/shestoi/adminpanel/services/order/internal/service"
)

// ProductClientAdapter адаптирует GET /products/{id} к service.ProductClient
type ProductClientAdapter struct {
	client *httpclient.Client
}

func NewProductClientAdapter(c *httpclient.Client) service.ProductClient {
	return &ProductClientAdapter{client: c}
}

type productResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// GetProduct 404 product service сохраняет apperr.ErrNotFound в цепочке ошибки
func (a *ProductClientAdapter) GetProduct(ctx context.Context, productID int64) (client.Product, error) {
	var resp productResponse
	if _, err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil, &resp); err != nil {
		return client.Product{}, fmt.Errorf("get product %d: %w", productID, err)
	}
	return client.Product{ID: resp.ID, Name: resp.Name, Price: resp.Price}, nil
}
