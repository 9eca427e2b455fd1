package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetState возвращает состояние жизненного цикла адаптера.
func (h *Handler) GetState(c *gin.Context) {
	resp := gin.H{
		"status":     "ok",
		"session_id": h.source.GetSessionID(),
		"state":      h.source.GetState(),
	}
	if data := h.source.GetCurrentData(); data != nil {
		resp["cycles"] = data.Cycles
		resp["timestamp"] = data.Timestamp
	}
	c.JSON(http.StatusOK, resp)
}

// GetDescription возвращает описание контроллера, построенное при конфигурации.
func (h *Handler) GetDescription(c *gin.Context) {
	desc := h.source.GetDescription()
	if desc == nil {
		h.NotFound(c, fmt.Errorf("robot controller description is not available in state %s", h.source.GetState()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "description": desc})
}

// GetJoints возвращает последний снимок состояний и команд суставов.
func (h *Handler) GetJoints(c *gin.Context) {
	data := h.source.GetCurrentData()
	if data == nil || len(data.Joints) == 0 {
		h.NotFound(c, fmt.Errorf("no joint data published yet"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"state":     data.State,
		"timestamp": data.Timestamp,
		"joints":    data.Joints,
	})
}

// GetJoint возвращает снимок одного сустава по каноническому имени ("joint_1").
func (h *Handler) GetJoint(c *gin.Context) {
	name := c.Param("name")
	if data := h.source.GetCurrentData(); data != nil {
		for _, joint := range data.Joints {
			if joint.Name == name {
				c.JSON(http.StatusOK, gin.H{"status": "ok", "joint": joint})
				return
			}
		}
	}
	h.NotFound(c, fmt.Errorf("joint %q not found", name))
}
