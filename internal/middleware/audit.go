package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/econify/econify/internal/services"
	"github.com/gin-gonic/gin"
)

const maxAuditBody = 2000

// AuditLog records mutating requests (POST/PUT/DELETE) to system_logs.
// Must run after AuthRequired so the acting user is known.
func AuditLog(logs *services.SystemLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = maskSensitiveFields(string(bodyBytes))
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		userID := GetUserID(c)
		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *uint
		if userID > 0 {
			uid = &userID
		}

		level := services.LevelInfo
		if status >= 400 {
			level = services.LevelWarning
		}

		logs.Record(level, module, action,
			formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status),
			uid, c.ClientIP(), c.Request.UserAgent(),
			map[string]interface{}{
				"method":     method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"body":       bodySnippet,
				"request_id": c.Writer.Header().Get("X-Request-ID"),
			})
	}
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/deliverables/:id/release" + "PUT" -> module="Deliverables", action="Release"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	parts := strings.Split(path, "/")

	module = parts[0]
	if module == "" {
		module = "unknown"
	}
	module = capitalize(module)

	// A trailing static segment names the action: /assign-jury, /:id/release
	last := parts[len(parts)-1]
	if len(parts) > 1 && last != "" && !strings.HasPrefix(last, ":") {
		return module, capitalize(last)
	}

	switch method {
	case "POST":
		action = "Create"
	case "PUT":
		action = "Update"
	case "DELETE":
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

// capitalize turns "assign-jury" into "Assign Jury".
func capitalize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatAuditMessage(username, method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(username)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" -> ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}

var sensitiveKeys = []string{"password", "oldPassword", "newPassword", "old_password", "new_password", "refresh_token", "refreshToken", "token", "secret"}

// maskSensitiveFields replaces sensitive string values in a JSON body
func maskSensitiveFields(body string) string {
	for _, key := range sensitiveKeys {
		body = maskJSONValue(body, key)
	}
	return body
}

// maskJSONValue masks every "key": "value" occurrence for key (case-insensitive).
func maskJSONValue(body, key string) string {
	needle := "\"" + strings.ToLower(key) + "\""
	from := 0
	for {
		idx := strings.Index(strings.ToLower(body[from:]), needle)
		if idx == -1 {
			return body
		}
		idx += from + len(needle)

		colon := strings.Index(body[idx:], ":")
		if colon == -1 {
			return body
		}
		valueStart := idx + colon + 1
		for valueStart < len(body) && (body[valueStart] == ' ' || body[valueStart] == '\t') {
			valueStart++
		}
		if valueStart >= len(body) || body[valueStart] != '"' {
			from = idx
			continue
		}

		endQuote := strings.Index(body[valueStart+1:], "\"")
		if endQuote == -1 {
			return body
		}
		body = body[:valueStart+1] + "***" + body[valueStart+1+endQuote:]
		from = valueStart + 4
	}
}
