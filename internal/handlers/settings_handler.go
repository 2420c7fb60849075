package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/recebimentosmart/billing-backend/internal/dto"
	"github.com/recebimentosmart/billing-backend/internal/models"
	"github.com/recebimentosmart/billing-backend/internal/services"
	"github.com/recebimentosmart/billing-backend/internal/validator"
)

var errInvalidSettingValue = errors.New("value does not match type")

type SettingsHandler struct {
	repo     services.SettingsRepository
	validate *validator.Validator
}

func NewSettingsHandler(repo services.SettingsRepository, v *validator.Validator) *SettingsHandler {
	return &SettingsHandler{repo: repo, validate: v}
}

type setSettingRequest struct {
	Value string `json:"value" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=string bool int number json"`
}

// List returns every setting with its value converted to its declared type.
func (h *SettingsHandler) List(c *fiber.Ctx) error {
	settings, err := h.repo.ListSettings(c.UserContext())
	if err != nil {
		slog.Error("failed to list settings", "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch settings",
		})
	}

	result := make(map[string]interface{}, len(settings))
	for _, s := range settings {
		v, err := typedValue(s.Type, s.Value)
		if err != nil {
			v = s.Value
		}
		result[s.Key] = v
	}
	return c.JSON(result)
}

// Set creates or replaces a setting (admin only).
func (h *SettingsHandler) Set(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Params("key"))
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Key parameter is required",
		})
	}

	var req setSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if err := h.validate.Validate(&req); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ValidationErrorResponse{
				Success: false,
				Message: "Missing or invalid fields: " + strings.Join(verr.Fields(), ", "),
				Fields:  verr.Errors,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
	}
	if req.Type == "" {
		req.Type = "string"
	}
	if key == models.SettingSubscriptionPrice {
		req.Type = "number"
	}

	v, err := typedValue(req.Type, req.Value)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Value is not a valid " + req.Type,
		})
	}
	if price, ok := v.(float64); ok && key == models.SettingSubscriptionPrice && price <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Subscription price must be positive",
		})
	}

	setting := &models.AppSetting{Key: key, Value: req.Value, Type: req.Type}
	if err := h.repo.UpsertSetting(c.UserContext(), setting); err != nil {
		slog.Error("failed to save setting", "key", key, "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to save setting",
		})
	}

	slog.Info("setting updated", "key", key, "type", req.Type)
	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Setting updated successfully",
		"setting": fiber.Map{"key": key, "value": v, "type": req.Type},
	})
}

// Delete removes a setting (admin only). Readers fall back to their defaults.
func (h *SettingsHandler) Delete(c *fiber.Ctx) error {
	key := c.Params("key")
	deleted, err := h.repo.DeleteSetting(c.UserContext(), key)
	if err != nil {
		slog.Error("failed to delete setting", "key", key, "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete setting",
		})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Setting not found",
		})
	}
	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Setting deleted successfully",
	})
}

func typedValue(typ, raw string) (interface{}, error) {
	switch typ {
	case "bool":
		return strconv.ParseBool(raw)
	case "int":
		return strconv.Atoi(raw)
	case "number":
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case "json":
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errInvalidSettingValue
		}
		return v, nil
	default:
		return raw, nil
	}
}
