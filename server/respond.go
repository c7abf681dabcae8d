package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"bptlab/btree"
	"bptlab/store"
)

const defaultBulkCount = btree.DefaultBulkCount

func nowUnixNano() int64 {
	return time.Now().UnixNano()
}

// respondResult writes an operation envelope. A missing tree is the one
// result failure that maps to 404; key-level misses keep 200 so the client
// can replay the partial trace.
func respondResult(c *fiber.Ctx, res *btree.Result) error {
	status := http.StatusOK
	if !res.Success && strings.HasPrefix(res.Error, store.ErrTreeNotFound.Error()) {
		status = http.StatusNotFound
	}
	return c.Status(status).JSON(res)
}
