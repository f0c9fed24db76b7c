package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"luxio/models"
)

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Store(ctx, resp.Token, resp.ExpiresAt); err != nil {
		return nil, fmt.Errorf("store auth token: %w", err)
	}
	return &resp, nil
}

func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.Store(ctx, resp.Token, resp.ExpiresAt); err != nil {
		return nil, fmt.Errorf("store auth token: %w", err)
	}
	return &resp, nil
}

// Logout always clears local session state, even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.Teardown(ctx)
	return err
}

func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Products(ctx context.Context, category string) ([]models.Product, error) {
	path := "/api/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Orders(ctx context.Context) ([]models.StoredOrder, error) {
	var list []models.StoredOrder
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/orders/%d", id), nil, nil)
}

func (c *Client) InitGatewayPayment(ctx context.Context, req models.PaymentInitRequest) (*models.PaymentInitResponse, error) {
	var resp models.PaymentInitResponse
	if err := c.do(ctx, http.MethodPost, "/api/payment/nowpayments-init", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req models.SubmitOrderRequest) (*models.SubmitOrderResponse, error) {
	var resp models.SubmitOrderResponse
	if err := c.do(ctx, http.MethodPost, "/api/payment/submit-order", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SuspensionStatus(ctx context.Context) (*models.SuspensionStatus, error) {
	var status models.SuspensionStatus
	if err := c.do(ctx, http.MethodGet, "/api/user/suspension-status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
