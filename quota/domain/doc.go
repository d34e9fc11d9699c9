// Package domain define os tipos e contratos do controle de cota diária
// (contagem por cliente, liberação VIP por senha) e do throttling auxiliar.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Erros de negócio são sentinelas comparáveis com errors.Is.
package domain
