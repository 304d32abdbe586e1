package middleware

import (
	"isp-crm/internal/database"
	"isp-crm/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CurrentUserKey = "CurrentUser"

func InjectUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if uidRaw := sess.Get("user_id"); uidRaw != nil {
			if uid, ok := uidRaw.(uint); ok && uid > 0 {
				var user models.User
				if err := database.DB.First(&user, uid).Error; err == nil {
					c.Set(CurrentUserKey, user)
				}
			}
		}

		c.Next()
	}
}

// CurrentUser pulls the logged-in user injected by InjectUser. The bool is
// false on unauthenticated requests.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(CurrentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
