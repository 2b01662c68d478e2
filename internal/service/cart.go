package service

import (
	"context"
	"errors"

	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
)

var errNoCart = errors.New("cart store is not configured")

// AddCartItem validates item against the menu and current stock before
// appending it to the cart.
func (s *OrderService) AddCartItem(ctx context.Context, cartID string, item models.OrderItem) ([]models.OrderItem, error) {
	if s.cart == nil {
		return nil, apperr.Provider("cart", errNoCart)
	}
	if cartID == "" {
		return nil, apperr.Validation("cartId", "cart id is required")
	}
	if err := s.catalog.ValidateItem(item); err != nil {
		return nil, err
	}
	flags, err := s.repo.ListInventory(ctx)
	if err != nil {
		return nil, apperr.Provider("store", err)
	}
	if err := s.catalog.CheckStock(item, flags); err != nil {
		return nil, err
	}
	return s.cart.Add(ctx, cartID, item)
}

func (s *OrderService) CartItems(ctx context.Context, cartID string) ([]models.OrderItem, error) {
	if s.cart == nil {
		return nil, apperr.Provider("cart", errNoCart)
	}
	return s.cart.Items(ctx, cartID)
}

func (s *OrderService) RemoveCartItem(ctx context.Context, cartID string, index int) ([]models.OrderItem, error) {
	if s.cart == nil {
		return nil, apperr.Provider("cart", errNoCart)
	}
	return s.cart.Remove(ctx, cartID, index)
}

func (s *OrderService) ClearCart(ctx context.Context, cartID string) error {
	if s.cart == nil {
		return apperr.Provider("cart", errNoCart)
	}
	return s.cart.Clear(ctx, cartID)
}
