package source

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/okian/groupwatch/internal/domain/model"
)

// rosterShape is one known layout of a group response. container must resolve
// to a JSON array for the shape to match ("" is the document itself);
// username extracts a name from one element.
type rosterShape struct {
	name      string
	container string
	username  func(el gjson.Result) string
}

// rosterShapes is tried in order; the first matching shape wins.
var rosterShapes = []rosterShape{
	{
		name:      "memberships",
		container: "memberships",
		username:  func(el gjson.Result) string { return el.Get("player.username").String() },
	},
	{
		name:      "members",
		container: "members",
		username:  objectOrString("username"),
	},
	{
		name:      "array",
		container: "",
		username:  objectOrString("username"),
	},
}

func objectOrString(field string) func(gjson.Result) string {
	return func(el gjson.Result) string {
		switch {
		case el.IsObject():
			if v := el.Get(field); v.Type == gjson.String {
				return v.String()
			}
			return el.Get("player." + field).String()
		case el.Type == gjson.String:
			return el.String()
		}
		return ""
	}
}

// parseRoster runs body through rosterShapes. A shape matches when its
// container is an empty array or at least one element yields a username; a
// populated container with no usable usernames falls through to the next
// shape.
func parseRoster(body []byte) (model.Roster, string, error) {
	if !gjson.ValidBytes(body) {
		return nil, "", ErrUpstreamShape
	}
	doc := gjson.ParseBytes(body)
	for _, shape := range rosterShapes {
		c := doc
		if shape.container != "" {
			c = doc.Get(shape.container)
		}
		if !c.IsArray() {
			continue
		}
		r := model.Roster{}
		elements := 0
		c.ForEach(func(_, el gjson.Result) bool {
			elements++
			r.Add(shape.username(el))
			return true
		})
		if elements > 0 && r.Len() == 0 {
			continue
		}
		return r, shape.name, nil
	}
	return nil, "", ErrUpstreamShape
}

// parseLevels reads latestSnapshot.data.skills.*.level. Values that are not
// JSON integers are omitted.
func parseLevels(body []byte) (model.Levels, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrUpstreamShape
	}
	skills := gjson.GetBytes(body, "latestSnapshot.data.skills")
	levels := model.Levels{}
	if !skills.IsObject() {
		return levels, nil
	}
	skills.ForEach(func(name, skill gjson.Result) bool {
		lvl := skill.Get("level")
		if lvl.Type != gjson.Number {
			return true
		}
		n, err := strconv.Atoi(strings.TrimSpace(lvl.Raw))
		if err != nil {
			return true
		}
		levels[name.String()] = n
		return true
	})
	return levels, nil
}

// parseLeaderboard reads a top-level array of delta leaderboard entries.
func parseLeaderboard(body []byte, limit int) ([]model.LeaderboardRow, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrUpstreamShape
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, ErrUpstreamShape
	}
	var rows []model.LeaderboardRow
	doc.ForEach(func(_, entry gjson.Result) bool {
		if limit > 0 && len(rows) >= limit {
			return false
		}
		name := entry.Get("player.displayName").String()
		if name == "" {
			name = entry.Get("player.username").String()
		}
		if name == "" {
			name = "Unknown"
		}
		rows = append(rows, model.LeaderboardRow{DisplayName: name, Gained: gainedValue(entry)})
		return true
	})
	return rows, nil
}

func gainedValue(entry gjson.Result) int64 {
	g := entry.Get("gained")
	if !g.Exists() {
		g = entry.Get("data.gained")
	}
	switch g.Type {
	case gjson.Number:
		return int64(g.Float())
	case gjson.String:
		if n, err := strconv.ParseInt(strings.TrimSpace(g.Str), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
