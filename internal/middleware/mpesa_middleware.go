package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/colloceo/colloceo-wifi-billing-system/internal/mpesa"
)

func MpesaMiddleware(client *mpesa.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("mpesa_client", client)
		c.Next()
	}
}

func GetMpesaClient(c *gin.Context) *mpesa.Client {
	client, exists := c.Get("mpesa_client")
	if !exists {
		return nil
	}
	return client.(*mpesa.Client)
}
