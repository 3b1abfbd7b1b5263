package webhook

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// Problem type URNs returned to webhook providers. Deliveries are
// machine-to-machine, so the types are stable identifiers rather than
// browsable documentation links.
const (
	problemTypeInvalidDelivery = "urn:zapflow:problem:invalid-delivery"
	problemTypeUnknownZap      = "urn:zapflow:problem:unknown-zap"
	problemTypeDeliveryFailed  = "urn:zapflow:problem:delivery-failed"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType(problemTypeInvalidDelivery).
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func zapNotFound(c fiber.Ctx, zapID string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemTypeUnknownZap).
		WithDetail("no zap with id " + zapID)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType(problemTypeDeliveryFailed).
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}
