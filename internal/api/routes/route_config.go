package routes

import (
	"foodgram-backend/internal/api/handlers"
	"foodgram-backend/internal/middleware"
	"foodgram-backend/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	App            *fiber.App
	UserHandler    handlers.UserHandler
	CatalogHandler handlers.CatalogHandler
	RecipeHandler  handlers.RecipeHandler
	Middleware     middleware.Middleware
	JWTService     jwt.JWTService
}

func (c *Config) Setup() {
	c.App.Use(c.Middleware.CORSMiddleware())
	c.User()
	c.Catalog()
	c.Recipe()
	c.GuestRoute()
}

func (c *Config) User() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)
	optional := c.Middleware.OptionalAuthMiddleware(c.JWTService)

	user := c.App.Group("/api/v1/users")
	{
		user.Post("/register", c.UserHandler.Register)
		user.Post("/login", c.UserHandler.Login)
		user.Get("/me", auth, c.UserHandler.Me)
		user.Post("/set_password", auth, c.UserHandler.SetPassword)
		user.Post("/forget", c.UserHandler.ForgotPassword)
		user.Post("/reset", c.UserHandler.ResetPassword)
		user.Get("/subscriptions", auth, c.UserHandler.GetSubscriptions)
		user.Get("/", optional, c.UserHandler.GetUsers)
		user.Get("/:id", optional, c.UserHandler.GetUserDetail)
		user.Post("/:id/subscribe", auth, c.UserHandler.Subscribe)
		user.Delete("/:id/subscribe", auth, c.UserHandler.Unsubscribe)
	}
}

func (c *Config) Catalog() {
	tags := c.App.Group("/api/v1/tags")
	{
		tags.Get("/", c.CatalogHandler.GetTags)
		tags.Get("/:id", c.CatalogHandler.GetTagDetail)
	}

	ingredients := c.App.Group("/api/v1/ingredients")
	{
		ingredients.Get("/", c.CatalogHandler.GetIngredients)
		ingredients.Get("/:id", c.CatalogHandler.GetIngredientDetail)
	}
}

func (c *Config) Recipe() {
	auth := c.Middleware.AuthMiddleware(c.JWTService)
	optional := c.Middleware.OptionalAuthMiddleware(c.JWTService)

	recipes := c.App.Group("/api/v1/recipes")
	{
		// Registered before /:id so the path is not captured as a recipe id.
		recipes.Get("/download_shopping_list", auth, c.RecipeHandler.DownloadShoppingList)

		recipes.Get("/", optional, c.RecipeHandler.GetRecipes)
		recipes.Post("/", auth, c.RecipeHandler.CreateRecipe)
		recipes.Get("/:id", optional, c.RecipeHandler.GetRecipeDetail)
		recipes.Patch("/:id", auth, c.RecipeHandler.UpdateRecipe)
		recipes.Delete("/:id", auth, c.RecipeHandler.DeleteRecipe)

		recipes.Post("/:id/favorite", auth, c.RecipeHandler.Favorite)
		recipes.Delete("/:id/favorite", auth, c.RecipeHandler.Unfavorite)
		recipes.Post("/:id/shopping_cart", auth, c.RecipeHandler.AddToCart)
		recipes.Delete("/:id/shopping_cart", auth, c.RecipeHandler.RemoveFromCart)
	}
}

func (c *Config) GuestRoute() {
	c.App.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
}
