package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	rootMessage    = "Quantum AI Backend Running"
	clearedMessage = "History cleared"
)

// pingHandler reports liveness and how long the app has been up.
func pingHandler(c *gin.Context, started time.Time) {
	c.JSON(http.StatusOK, AliveResponseSpec{
		Status: "Alive",
		Uptime: time.Since(started).Milliseconds(),
	})
}

func rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponseSpec{Message: rootMessage})
}

func simulateHandler(c *gin.Context, sim *simulator) {
	c.JSON(http.StatusOK, sim.Simulate())
}

func historyHandler(c *gin.Context, h *history) {
	c.JSON(http.StatusOK, h.List())
}

func clearHandler(c *gin.Context, sim *simulator) {
	sim.ClearHistory()

	c.JSON(http.StatusOK, MessageResponseSpec{Message: clearedMessage})
}
