package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/schedulehq/conference-optimizer/internal/constraint"
	"github.com/schedulehq/conference-optimizer/pkg/utils"
)

type TemplateHandler struct {
	logger *logrus.Logger
}

func NewTemplateHandler(logger *logrus.Logger) *TemplateHandler {
	return &TemplateHandler{logger: logger}
}

// ListTemplates returns the supported template names and constraint kinds.
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"templates": constraint.TemplateNames(),
		"kinds":     constraint.AllKinds(),
	})
}

// ExpandTemplate materializes a named template into a constraint list.
func (h *TemplateHandler) ExpandTemplate(c *gin.Context) {
	name := c.Param("name")

	var params constraint.TemplateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		utils.SendValidationError(c, "Invalid template parameters", err.Error())
		return
	}

	constraints, err := constraint.Template(name, params)
	if err != nil {
		utils.SendNotFound(c, err.Error())
		return
	}

	h.logger.WithFields(logrus.Fields{
		"template":    name,
		"sport":       params.Sport,
		"constraints": len(constraints),
	}).Debug("Template expanded")

	utils.SendSuccess(c, gin.H{"constraints": constraints})
}
