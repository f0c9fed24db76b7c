package controllers

import (
	"errors"
	"log"
	"net/http"

	"luxio/models"
	"luxio/repository"

	"github.com/gin-gonic/gin"
)

type ProductController struct {
	products repository.Products
}

func NewProductController(products repository.Products) *ProductController {
	return &ProductController{products: products}
}

func (p *ProductController) List(c *gin.Context) {
	list, err := p.products.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		log.Printf("Failed to list products: %v", err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if list == nil {
		list = []models.Product{}
	}
	c.JSON(http.StatusOK, list)
}

func (p *ProductController) Get(c *gin.Context) {
	product, err := p.products.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		log.Printf("Failed to load product %s: %v", c.Param("id"), err)
		respondError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, product)
}
