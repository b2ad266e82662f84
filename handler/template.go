package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yair4430/CertiGranja-2.0/pkg/logger"
	"github.com/Yair4430/CertiGranja-2.0/sheet"
)

// DownloadTemplate returns the blank batch workbook base64 encoded, the
// shape the upload page expects.
func DownloadTemplate(c *gin.Context) {
	buf, err := sheet.Template()
	if err != nil {
		logger.Error(c.Request.Context(), "failed to build template", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al generar la plantilla"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"archivo_base64": base64.StdEncoding.EncodeToString(buf.Bytes()),
		"nombre":         sheet.TemplateName,
	})
}
