package handler

import (
	"church-pos/internal/repository"
	"church-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

type InventoryHandler struct {
	inventory service.InventoryService
	products  service.ProductService
}

func NewInventoryHandler(inventory service.InventoryService, products service.ProductService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, products: products}
}

// GetInventory returns stock levels of tracked products
// GET /api/v1/pos/inventory?low_stock=true&category_id=
func (h *InventoryHandler) GetInventory(c *fiber.Ctx) error {
	categoryID, err := queryID(c, "category_id")
	if err != nil {
		return respondError(c, err)
	}
	lowStock := queryBool(c, "low_stock")

	levels, err := h.inventory.GetLevels(c.UserContext(), repository.InventoryFilter{
		LowStockOnly: lowStock != nil && *lowStock,
		CategoryID:   categoryID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(levels)
}

// AdjustInventory sets the counted quantity of a product
// PUT /api/v1/pos/inventory/:product_id
func (h *InventoryHandler) AdjustInventory(c *fiber.Ctx) error {
	productID, err := paramID(c, "product_id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.AdjustInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	record, err := h.inventory.Adjust(c.UserContext(), getActor(c), productID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Inventory updated", "data": record})
}

// GetProducts lists the catalogue
// GET /api/v1/pos/products?q=&category_id=&active=&favorite=
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	categoryID, err := queryID(c, "category_id")
	if err != nil {
		return respondError(c, err)
	}

	products, err := h.products.List(c.UserContext(), repository.ProductFilter{
		Query:      c.Query("q"),
		CategoryID: categoryID,
		Active:     queryBool(c, "active"),
		Favorite:   queryBool(c, "favorite"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": products})
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	product, err := h.products.Get(c.UserContext(), productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": product})
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	product, err := h.products.Create(c.UserContext(), getActor(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	updated, err := h.products.Update(c.UserContext(), getActor(c), productID, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	productID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.products.Delete(c.UserContext(), getActor(c), productID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}

func (h *InventoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.products.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": categories})
}

func (h *InventoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	category, err := h.products.CreateCategory(c.UserContext(), getActor(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Category created", "data": category})
}
