package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/repository"
)

const defaultTransactionPageSize = 50

// HandleAdminTransactionList serves the reconciliation console: ledger rows
// filterable by discrepancy, orphan status, user and time range.
func HandleAdminTransactionList(c *fiber.Ctx) error {
	filter := repository.TransactionFilter{
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", defaultTransactionPageSize),
	}

	discrepant, err := queryBool(c, "discrepant")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	filter.Discrepant = discrepant

	orphan, err := queryBool(c, "orphan")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	filter.Orphan = orphan

	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid user_id")
		}
		userID := uint(id)
		filter.UserID = &userID
	}

	from, err := queryTime(c, "from")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	filter.From = from

	to, err := queryTime(c, "to")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	filter.To = to

	repo := repository.GetGlobalFactory().GetTransactionRepository()
	txs, err := repo.List(filter)
	if err != nil {
		return mapServiceError(c, err)
	}
	total, err := repo.Count(filter)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"transactions": txs,
		"total":        total,
		"offset":       filter.Offset,
		"limit":        filter.Limit,
	})
}
