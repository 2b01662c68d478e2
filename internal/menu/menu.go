package menu

import (
	"coffeehouse/internal/apperr"
	"coffeehouse/internal/models"
)

const (
	TemperatureHot  = "Hot"
	TemperatureIced = "Iced"

	MilkWhole = "Whole Milk"
	MilkOat   = "Oat Milk"
)

type Drink struct {
	ID          string `json:"id"`
	Name        string `json:"drinkName"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

var seasonalDrinks = []Drink{
	{ID: "peppermint-mocha", Name: "Peppermint Mocha", Description: "Dark chocolate with cool peppermint", Image: "/Image1@2x.JPG"},
	{ID: "gingerbread-latte", Name: "Gingerbread Latte", Description: "Warm spices with sweet molasses", Image: "/Image2@2x.JPG"},
	{ID: "cayenne-mocha-latte", Name: "Cayenne Mocha Latte", Description: "Creamy eggnog with rich espresso", Image: "/IMG_1145.JPG"},
	{ID: "peppermint-mocha-latte", Name: "Peppermint Mocha Latte", Description: "Creamy eggnog with rich espresso", Image: "/IMG_1145.JPG"},
	{ID: "graham-cracker-matcha", Name: "Graham Cracker Matcha", Description: "Creamy eggnog with rich espresso", Image: "/IMG_1145.JPG"},
}

type MenuDrink struct {
	Drink
	InStock bool `json:"inStock"`
}

type MenuOption struct {
	Name    string `json:"name"`
	InStock bool   `json:"inStock"`
}

type Menu struct {
	Drinks       []MenuDrink  `json:"drinks"`
	Temperatures []string     `json:"temperatures"`
	MilkTypes    []MenuOption `json:"milkTypes"`
}

type Catalog interface {
	Drinks() []Drink
	MilkTypes() []string
	Temperatures() []string
	Knows(kind models.ItemKind, name string) bool
	ValidateItem(item models.OrderItem) error
	CheckStock(item models.OrderItem, flags []models.InventoryFlag) error
	Annotate(flags []models.InventoryFlag) Menu
}

type catalog struct {
	drinks []Drink
	byName map[string]Drink
	milks  []string
	temps  []string
}

func NewCatalog() Catalog {
	c := &catalog{
		drinks: seasonalDrinks,
		byName: make(map[string]Drink, len(seasonalDrinks)),
		milks:  []string{MilkWhole, MilkOat},
		temps:  []string{TemperatureHot, TemperatureIced},
	}
	for _, d := range c.drinks {
		c.byName[d.Name] = d
	}
	return c
}

func (c *catalog) Drinks() []Drink {
	return append([]Drink(nil), c.drinks...)
}

func (c *catalog) MilkTypes() []string {
	return append([]string(nil), c.milks...)
}

func (c *catalog) Temperatures() []string {
	return append([]string(nil), c.temps...)
}

func (c *catalog) Knows(kind models.ItemKind, name string) bool {
	switch kind {
	case models.ItemKindDrink:
		_, ok := c.byName[name]
		return ok
	case models.ItemKindMilk:
		return contains(c.milks, name)
	}
	return false
}

// ValidateItem checks the item against the fixed menu. Temperature and milk are
// optional, but when set they must be one of the offered choices.
func (c *catalog) ValidateItem(item models.OrderItem) error {
	if item.DrinkName == "" {
		return apperr.Validation("items", "drink name is required")
	}
	if _, ok := c.byName[item.DrinkName]; !ok {
		return apperr.Validation("items", "unknown drink %q", item.DrinkName)
	}
	if item.Temperature != "" && !contains(c.temps, item.Temperature) {
		return apperr.Validation("items", "unsupported temperature %q for %s", item.Temperature, item.DrinkName)
	}
	if item.MilkType != "" && !contains(c.milks, item.MilkType) {
		return apperr.Validation("items", "unsupported milk %q for %s", item.MilkType, item.DrinkName)
	}
	return nil
}

func (c *catalog) CheckStock(item models.OrderItem, flags []models.InventoryFlag) error {
	if !inStock(flags, models.ItemKindDrink, item.DrinkName) {
		return apperr.Validation("items", "%s is out of stock", item.DrinkName)
	}
	if item.MilkType != "" && !inStock(flags, models.ItemKindMilk, item.MilkType) {
		return apperr.Validation("items", "%s is out of stock", item.MilkType)
	}
	return nil
}

func (c *catalog) Annotate(flags []models.InventoryFlag) Menu {
	m := Menu{
		Drinks:       make([]MenuDrink, 0, len(c.drinks)),
		Temperatures: c.Temperatures(),
		MilkTypes:    make([]MenuOption, 0, len(c.milks)),
	}
	for _, d := range c.drinks {
		m.Drinks = append(m.Drinks, MenuDrink{Drink: d, InStock: inStock(flags, models.ItemKindDrink, d.Name)})
	}
	for _, milk := range c.milks {
		m.MilkTypes = append(m.MilkTypes, MenuOption{Name: milk, InStock: inStock(flags, models.ItemKindMilk, milk)})
	}
	return m
}

// ParseKind accepts the console/API spelling of an inventory kind.
func ParseKind(s string) (models.ItemKind, error) {
	switch models.ItemKind(s) {
	case models.ItemKindDrink, models.ItemKindMilk:
		return models.ItemKind(s), nil
	}
	return "", apperr.Validation("kind", "unsupported inventory kind %q", s)
}

// inStock treats a missing record as in stock.
func inStock(flags []models.InventoryFlag, kind models.ItemKind, name string) bool {
	for _, f := range flags {
		if f.Kind == kind && f.Name == name {
			return f.InStock
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
