package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/wxfusion/wxfusion/internal/common"
	"github.com/wxfusion/wxfusion/internal/store"
	"github.com/wxfusion/wxfusion/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, coord *weather.Coordinator, snaps weather.SnapshotStore) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		req, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		force, _ := strconv.ParseBool(c.Query("force"))

		snapshot, err := coord.GetWeather(c.Context(), req.toLocation(), force)
		if err != nil {
			switch {
			case errors.Is(err, weather.ErrSourceUnavailable):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, weather.ErrNoData):
				return fiber.NewError(fiber.StatusBadGateway, "all weather sources failed and no cached data exists")
			default:
				return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
			}
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/cached", func(c *fiber.Ctx) error {
		req, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshot, age, err := snaps.Get(c.Context(), req.toLocation().Key())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no cached snapshot for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read snapshot cache")
		}
		return c.JSON(fiber.Map{
			"snapshot":    snapshot,
			"age_seconds": int64(age.Seconds()),
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		key := req.Location.toLocation().Key()
		snapshots, err := snaps.History(c.Context(), key, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no snapshot history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read snapshot history")
		}
		return c.JSON(fiber.Map{
			"key":       key,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

// locationQuery holds query parameters identifying a location: a name, or a
// lat/lon pair, or both.
type locationQuery struct {
	Name    string   `validate:"required_without=Lat"`
	Lat     *float64 `validate:"required_without=Name"`
	Lon     *float64 `validate:"required_with=Lat"`
	Country string   `validate:"omitempty,alpha,max=3"`
}

func (l locationQuery) toLocation() weather.Location {
	loc := weather.Location{Name: l.Name, Country: l.Country}
	if l.Lat != nil {
		loc.Lat = *l.Lat
	}
	if l.Lon != nil {
		loc.Lon = *l.Lon
	}
	return loc
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Name = c.Query("name")
	q.Country = c.Query("country")

	if raw := c.Query("lat"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.New("lat must be a number")
		}
		q.Lat = &v
	}
	if raw := c.Query("lon"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.New("lon must be a number")
		}
		q.Lon = &v
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := common.ParseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := common.ParseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}
