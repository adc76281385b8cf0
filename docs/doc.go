// Package docs holds the general API information for generated OpenAPI
// documentation. Handlers in internal/server/endpoints carry the operation
// annotations.
//
// Typen API
//
//	@title			Typen API
//	@version		1.0
//	@description	Books, next-word predictions and PDF export for the Typen writing editor.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//
//	@schemes	http https
package docs
