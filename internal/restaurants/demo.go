package restaurants

import "github.com/example/delivery-dispatch/internal/models"

var Demo = Restaurant{
	Slug:        "demo",
	Name:        "Demo Restaurant",
	Address:     "123 Main Street, Manhattan, NY 10001",
	Coord:       models.Coord{Lat: 40.7128, Lon: -74.0060},
	Color:       "#e74c3c",
	Description: "The tastiest meals in New York",
	MinOrder:    10.00,
	Menu: []MenuItem{
		{ID: 1, Name: "Margherita Pizza", Price: 18.00, Category: "Pizza"},
		{ID: 2, Name: "Pepperoni Pizza", Price: 20.00, Category: "Pizza"},
		{ID: 3, Name: "Classic Burger", Price: 15.00, Category: "Burgers"},
		{ID: 4, Name: "Cheeseburger", Price: 17.00, Category: "Burgers"},
		{ID: 5, Name: "Chicken Shawarma", Price: 14.00, Category: "Shawarma"},
		{ID: 6, Name: "Beef Shawarma", Price: 16.00, Category: "Shawarma"},
		{ID: 7, Name: "Caesar Salad", Price: 12.00, Category: "Salads"},
		{ID: 8, Name: "French Fries", Price: 6.00, Category: "Sides"},
		{ID: 9, Name: "Soda", Price: 3.00, Category: "Drinks"},
		{ID: 10, Name: "Fresh Juice", Price: 5.00, Category: "Drinks"},
	},
}
