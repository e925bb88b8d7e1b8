package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"storefront/internal/models"
	"storefront/internal/validate"
)

type variantRequest struct {
	ProductID uint    `json:"product_id" validate:"required"`
	ColorName string  `json:"color_name" validate:"required"`
	ColorCode string  `json:"color_code" validate:"required"`
	Size      string  `json:"size"       validate:"required"`
	Stock     int     `json:"stock"      validate:"gte=0"`
	Price     float64 `json:"price"      validate:"required,gt=0"`
	Image     string  `json:"image"`
}

func (h *ProductHandler) CreateVariant(c echo.Context) error {
	var req variantRequest
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	var prod models.Product
	if err := h.DB.First(&prod, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// (product, color, size) is unique among live variants.
	var dup models.ProductVariant
	err := h.DB.Where(
		"product_id = ? AND color_name = ? AND size = ? AND is_deleted = ?",
		req.ProductID, req.ColorName, req.Size, false,
	).First(&dup).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "variant with this color and size already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	variant := models.ProductVariant{
		ProductID: req.ProductID,
		ColorName: req.ColorName,
		ColorCode: req.ColorCode,
		Size:      req.Size,
		Stock:     req.Stock,
		Price:     req.Price,
		Image:     req.Image,
	}
	if err := h.DB.Create(&variant).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "variant_created",
		"productID": variant.ProductID,
		"variantID": variant.ID,
	})

	return c.JSON(http.StatusCreated, variant)
}

func (h *ProductHandler) UpdateVariant(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		ColorName string  `json:"color_name" validate:"required"`
		ColorCode string  `json:"color_code" validate:"required"`
		Size      string  `json:"size"       validate:"required"`
		Stock     int     `json:"stock"      validate:"gte=0"`
		Price     float64 `json:"price"      validate:"required,gt=0"`
		Image     string  `json:"image"`
	}
	if err := validate.Bind(c, &req); err != nil {
		return err
	}

	var variant models.ProductVariant
	if err := h.DB.Where("id = ? AND is_deleted = ?", id, false).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "variant not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Same live-combo rule as on create, minus the row being updated.
	var dup models.ProductVariant
	err = h.DB.Where(
		"product_id = ? AND color_name = ? AND size = ? AND is_deleted = ? AND id <> ?",
		variant.ProductID, req.ColorName, req.Size, false, variant.ID,
	).First(&dup).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "variant with this color and size already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	variant.ColorName = req.ColorName
	variant.ColorCode = req.ColorCode
	variant.Size = req.Size
	variant.Stock = req.Stock
	variant.Price = req.Price
	variant.Image = req.Image

	if err := h.DB.Save(&variant).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "variant_updated",
		"productID": variant.ProductID,
		"variantID": variant.ID,
	})

	return c.JSON(http.StatusOK, variant)
}

func (h *ProductHandler) DeleteVariant(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Model(&models.ProductVariant{}).Where("id = ?", id).Update("is_deleted", true)
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "variant not found")
	}

	h.publish(c, map[string]any{
		"type":      "variant_deleted",
		"variantID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
