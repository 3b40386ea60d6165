package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/econify/econify/internal/models"
	"github.com/econify/econify/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	userRoleTag  = "userrole"
	userRoleText = "{0} must be student or professor"

	translator   ut.Translator
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators installs the custom tags and English messages on gin's
// validator. Safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}

		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
		if err := en_translations.RegisterDefaultTranslations(v, translator); err != nil {
			registerErr = err
			return
		}

		// report fields by their JSON or query names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})

		if err := v.RegisterValidation(userRoleTag, func(fl validator.FieldLevel) bool {
			return models.ValidRole(fl.Field().String())
		}); err != nil {
			registerErr = err
			return
		}
		registerErr = v.RegisterTranslation(userRoleTag, translator,
			func(t ut.Translator) error { return t.Add(userRoleTag, userRoleText, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(userRoleTag, fe.Field())
				return s
			},
		)
	})
	return registerErr
}

// bindError answers a failed bind with a 400 listing every invalid field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if translator != nil {
				msgs = append(msgs, fe.Translate(translator))
			} else {
				msgs = append(msgs, fe.Error())
			}
		}
		response.BadRequest(c, strings.Join(msgs, "; "))
		return
	}
	response.BadRequest(c, "invalid request body")
}

// paramID parses a positive numeric path parameter, writing a 400 when it is not one.
func paramID(c *gin.Context, name, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+what+" id")
		return 0, false
	}
	return uint(id), true
}
