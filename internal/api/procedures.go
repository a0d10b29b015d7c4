package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/vibecampus/vibehub/internal/models"
)

// ProcedurePrefix namespaces backend procedures on the JSON-RPC surface
const ProcedurePrefix = "rpc."

// registerProcedures exposes every registered procedure as rpc.<name>
func (r *Router) registerProcedures() {
	for _, name := range r.procedures.Names() {
		name := name
		r.handler.RegisterMethod(ProcedurePrefix+name, func(c *gin.Context, params json.RawMessage) (interface{}, error) {
			res, err := r.procedures.Invoke(c.Request.Context(), name, Caller(c), params)
			if p, ok := res.(*models.Profile); ok && err == nil {
				r.forgetProfile(c.Request.Context(), p.ID)
			}
			return res, err
		})
	}
}
